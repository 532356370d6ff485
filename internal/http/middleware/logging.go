package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/obs"
)

// Logging registra uma linha por requisição e deixa no contexto um logger com
// request_id (zerolog.Ctx) para handlers e serviços.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := log.Logger
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			logger = logger.With().Str("request_id", reqID).Logger()
		}
		r = r.WithContext(logger.WithContext(r.Context()))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", obs.RoutePattern(r)).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", remoteHost(r)).
			Str("user_agent", r.UserAgent()).
			Msg("http_request")
	})
}
