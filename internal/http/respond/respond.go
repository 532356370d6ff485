// Package respond escreve o envelope JSON padrão da API e traduz erros de domínio.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/apperr"
)

// maxBody limite de corpo JSON.
const maxBody = 1 << 20

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSON escreve envelope de sucesso.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// Error escreve envelope de erro e mantém formato consistente.
func Error(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// Fail traduz o erro pela categoria. Falhas inesperadas não expõem a causa.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.Categorize(err)
	status := apperr.HTTPStatus(appErr.Category)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("erro ao processar requisição")
		if appErr.Category == apperr.Unexpected {
			Error(w, status, "INTERNAL", "erro interno", nil)
			return
		}
	}
	Error(w, status, appErr.Code, appErr.Message, appErr.Details)
}

// Decode lê JSON do corpo rejeitando campos desconhecidos.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("corpo da requisição vazio")
		}
		return apperr.Invalid("payload inválido")
	}
	return nil
}

// UUIDParam lê parâmetro de rota como uuid.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Invalid("%s inválido", name)
	}
	return id, nil
}

// QueryInt lê inteiro da query string; ausente ou inválido devolve def.
func QueryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// QueryLimit lê ?limit= limitado a 1..MaxPageSize; ausente ou inválido usa DefaultPageSize.
func QueryLimit(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	switch {
	case err != nil:
		return DefaultPageSize
	case v < 1:
		return 1
	case v > MaxPageSize:
		return MaxPageSize
	}
	return v
}
