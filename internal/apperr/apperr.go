// Package apperr classifica falhas do backend em categorias grosseiras
// usadas para decidir retry, status HTTP e mensagem ao usuário.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Category agrupa erros pelo tratamento que recebem.
type Category string

const (
	Network        Category = "network"
	Authentication Category = "authentication"
	Authorization  Category = "authorization"
	Validation     Category = "validation"
	NotFound       Category = "not_found"
	Unexpected     Category = "unexpected"
)

// ErrNotFound é a forma canônica de "registro não encontrado".
var ErrNotFound = New(NotFound, "NOT_FOUND", "registro não encontrado")

// Error carrega a categoria junto da causa original.
type Error struct {
	Category Category
	Code     string
	Message  string
	Details  any
	Err      error
}

// New cria erro categorizado sem causa.
func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Wrap anexa categoria e mensagem a uma causa existente.
func Wrap(err error, category Category, message string) *Error {
	return &Error{Category: category, Code: defaultCode(category), Message: message, Err: err}
}

// Invalid atalho para falhas de validação de entrada.
func Invalid(format string, args ...any) *Error {
	return &Error{Category: Validation, Code: "VALIDATION", Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Category)
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, apperr.ErrNotFound) para qualquer erro da mesma categoria e código.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithDetails devolve cópia com detalhes para o envelope de erro.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Categorize converte qualquer erro em *Error. Erros já categorizados são preservados.
func Categorize(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	category := classify(err)
	return &Error{Category: category, Code: defaultCode(category), Message: defaultMessage(category), Err: err}
}

// CategoryOf devolve apenas a categoria.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	return Categorize(err).Category
}

// Retryable indica se a categoria admite nova tentativa.
func Retryable(category Category) bool {
	switch category {
	case Authentication, Authorization, Validation:
		return false
	default:
		return true
	}
}

func classify(err error) Category {
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromSQLState(pgErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return Network
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return Network
	}

	return Unexpected
}

// fromSQLState mapeia códigos SQLSTATE do Postgres.
func fromSQLState(code string) Category {
	switch {
	case code == "42501":
		return Authorization
	case strings.HasPrefix(code, "28"):
		return Authentication
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		return Validation
	case strings.HasPrefix(code, "08"):
		return Network
	case code == "P0002":
		return NotFound
	default:
		return Unexpected
	}
}

// FromHTTPStatus categoriza respostas HTTP não-2xx.
func FromHTTPStatus(status int) Category {
	switch {
	case status == http.StatusUnauthorized:
		return Authentication
	case status == http.StatusForbidden:
		return Authorization
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return Validation
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return Network
	default:
		return Unexpected
	}
}

// FromCode reconstrói a categoria a partir do código do envelope JSON.
func FromCode(code string) Category {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "AUTH":
		return Authentication
	case "FORBIDDEN":
		return Authorization
	case "VALIDATION", "CONFLICT", "ILLEGAL_TRANSITION":
		return Validation
	case "NOT_FOUND":
		return NotFound
	case "UNAVAILABLE":
		return Network
	default:
		return Unexpected
	}
}

// HTTPStatus devolve o status HTTP usado pela API para a categoria.
func HTTPStatus(category Category) int {
	switch category {
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Network:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func defaultCode(category Category) string {
	switch category {
	case Authentication:
		return "AUTH"
	case Authorization:
		return "FORBIDDEN"
	case Validation:
		return "VALIDATION"
	case NotFound:
		return "NOT_FOUND"
	case Network:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

func defaultMessage(category Category) string {
	switch category {
	case Authentication:
		return "sessão inválida ou expirada"
	case Authorization:
		return "sem permissão para esta operação"
	case Validation:
		return "dados inválidos"
	case NotFound:
		return "registro não encontrado"
	case Network:
		return "serviço indisponível, tente novamente"
	default:
		return "erro inesperado"
	}
}
