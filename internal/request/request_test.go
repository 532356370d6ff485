package request

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/notify"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func fakeSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	delays := fakeSleep(t)

	res := Do(context.Background(), func(context.Context) (int, error) {
		return 42, nil
	}, Options{Context: "teste"})

	assert.True(t, res.OK())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 42, res.Data)
	assert.Nil(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, *delays)
}

func TestDoRetriesNetworkWithBackoff(t *testing.T) {
	delays := fakeSleep(t)
	calls := 0

	res := Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", context.DeadlineExceeded
		}
		return "ok", nil
	}, Options{Retries: 3, RetryDelay: 10 * time.Millisecond, Backoff: 2})

	require.True(t, res.OK())
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *delays)
}

func TestDoFixedDelayWhenBackoffIsOne(t *testing.T) {
	delays := fakeSleep(t)

	res := Do(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("falha")
	}, Options{Retries: 2, RetryDelay: time.Second, Backoff: 1})

	assert.False(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *delays)
}

func TestDoNeverRetriesAuthAuthzValidation(t *testing.T) {
	for _, category := range []apperr.Category{apperr.Authentication, apperr.Authorization, apperr.Validation} {
		t.Run(string(category), func(t *testing.T) {
			delays := fakeSleep(t)
			calls := 0
			res := Do(context.Background(), func(context.Context) (int, error) {
				calls++
				return 0, apperr.New(category, "X", "negado")
			}, Options{Retries: 5})

			assert.Equal(t, 1, calls)
			assert.Empty(t, *delays)
			require.NotNil(t, res.Err)
			assert.Equal(t, category, res.Err.Category)
			assert.Equal(t, StatusError, res.Status)
		})
	}
}

func TestDoRetriesAreCapped(t *testing.T) {
	fakeSleep(t)
	calls := 0

	res := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, apperr.ErrNotFound
	}, Options{Retries: 50})

	assert.Equal(t, MaxRetries+1, calls)
	assert.Equal(t, apperr.NotFound, res.Err.Category)
}

func TestDoNegativeRetriesDisablesRetry(t *testing.T) {
	fakeSleep(t)
	calls := 0

	Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("x")
	}, Options{Retries: -1})

	assert.Equal(t, 1, calls)
}

func TestDoNotifiesOnFinalFailureWithCustomMessage(t *testing.T) {
	fakeSleep(t)
	rec := &recordingNotifier{}

	res := Do(context.Background(), func(context.Context) (int, error) {
		return 0, apperr.Invalid("campo obrigatório")
	}, Options{Context: "compras.create", ErrorMessage: "Não foi possível criar a solicitação", Notifier: rec})

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, notify.LevelError, rec.msgs[0].Level)
	assert.Equal(t, "Não foi possível criar a solicitação", rec.msgs[0].Text)
	assert.Equal(t, "Não foi possível criar a solicitação", res.Err.Message)
	assert.Equal(t, apperr.Validation, res.Err.Category)
}

func TestDoSilentSkipsNotification(t *testing.T) {
	fakeSleep(t)
	rec := &recordingNotifier{}

	Do(context.Background(), func(context.Context) (int, error) {
		return 0, apperr.Invalid("x")
	}, Options{Notifier: rec, Silent: true})

	assert.Empty(t, rec.msgs)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	fakeSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	res := Do(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("x")
	}, Options{Retries: 3})

	assert.Equal(t, 1, calls)
	assert.False(t, res.OK())
}

func TestExecAndUnwrap(t *testing.T) {
	fakeSleep(t)

	res := Exec(context.Background(), func(context.Context) error { return apperr.Invalid("x") }, Options{})
	_, err := res.Unwrap()
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))
}

func TestPolicyApplyFillsMissing(t *testing.T) {
	p := Policy{Retries: 1, RetryDelay: 5 * time.Millisecond, Backoff: 3, Notifier: notify.Discard{}}
	got := p.Apply(Options{Retries: 2})

	assert.Equal(t, 2, got.Retries)
	assert.Equal(t, 5*time.Millisecond, got.RetryDelay)
	assert.Equal(t, 3.0, got.Backoff)
	assert.NotNil(t, got.Notifier)
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(apperr.Invalid("x")))
	assert.True(t, ShouldRetry(errors.New("x")))
}

func TestPolicyWithZeroRetriesMakesOneAttempt(t *testing.T) {
	delays := fakeSleep(t)
	calls := 0

	res := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, apperr.New(apperr.Network, "NETWORK", "sem conexão")
	}, Policy{Retries: 0, RetryDelay: time.Millisecond}.Apply(Options{}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, *delays)
	assert.Equal(t, NoRetry, Policy{}.Apply(Options{}).Retries)
}

func TestDoKeepsCauseWhenCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	orig := sleep
	sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	t.Cleanup(func() { sleep = orig })

	res := Do(ctx, func(context.Context) (int, error) {
		return 0, apperr.New(apperr.Network, "NETWORK", "sem conexão")
	}, Options{Retries: 3, RetryDelay: time.Second})

	require.NotNil(t, res.Err)
	assert.Equal(t, apperr.Network, res.Err.Category)
	assert.Equal(t, "sem conexão", res.Err.Message)
	assert.Equal(t, 1, res.Attempts)
}
