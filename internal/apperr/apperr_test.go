package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{"no rows", pgx.ErrNoRows, NotFound},
		{"wrapped no rows", fmt.Errorf("buscar: %w", pgx.ErrNoRows), NotFound},
		{"privilege", &pgconn.PgError{Code: "42501"}, Authorization},
		{"invalid password", &pgconn.PgError{Code: "28P01"}, Authentication},
		{"unique violation", &pgconn.PgError{Code: "23505"}, Validation},
		{"bad input", &pgconn.PgError{Code: "22P02"}, Validation},
		{"connection failure", &pgconn.PgError{Code: "08006"}, Network},
		{"serialization", &pgconn.PgError{Code: "40001"}, Unexpected},
		{"deadline", context.DeadlineExceeded, Network},
		{"plain", errors.New("boom"), Unexpected},
		{"already categorized", Invalid("campo %s", "x"), Validation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Categorize(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Category)
		})
	}
}

func TestCategorizeNil(t *testing.T) {
	assert.Nil(t, Categorize(nil))
	assert.Equal(t, Category(""), CategoryOf(nil))
}

func TestRetryable(t *testing.T) {
	for _, c := range []Category{Authentication, Authorization, Validation} {
		assert.False(t, Retryable(c), c)
	}
	for _, c := range []Category{Network, NotFound, Unexpected} {
		assert.True(t, Retryable(c), c)
	}
}

func TestErrorIsMatchesCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("compras: %w", New(NotFound, "NOT_FOUND", "solicitação não encontrada"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(Invalid("x"), ErrNotFound))
}

func TestHTTPRoundTrip(t *testing.T) {
	for _, c := range []Category{Network, Authentication, Authorization, Validation, NotFound} {
		assert.Equal(t, c, FromHTTPStatus(HTTPStatus(c)), c)
		assert.Equal(t, c, FromCode(defaultCode(c)), c)
	}
	assert.Equal(t, Unexpected, FromHTTPStatus(http.StatusTeapot))
}
