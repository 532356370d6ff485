package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/http/respond"
)

// Recover converte panic em 500 com envelope. http.ErrAbortHandler é repassado ao servidor.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			logger := zerolog.Ctx(r.Context())
			if logger.GetLevel() == zerolog.Disabled {
				logger = &log.Logger
			}
			logger.Error().
				Str("panic", fmt.Sprint(rec)).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("panic recuperado")
			respond.Error(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
