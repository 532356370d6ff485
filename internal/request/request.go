// Package request padroniza o resultado de chamadas ao backend: retry limitado
// com backoff, categorização do erro, log e aviso ao usuário na falha final.
package request

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/obs"
)

const (
	// NoRetry em Options.Retries desliga novas tentativas.
	NoRetry           = -1
	DefaultRetries    = 3
	MaxRetries        = 5
	DefaultRetryDelay = time.Second
	DefaultBackoff    = 2.0
)

// Status resume o resultado.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Options ajusta uma chamada. Valores zero usam os padrões do pacote.
type Options struct {
	// ErrorMessage substitui a mensagem exibida ao usuário na falha final.
	ErrorMessage string
	// Context rótulo para logs e métricas (ex.: "compras.create").
	Context string
	// Retries novas tentativas após a primeira; negativo desliga retry.
	Retries int
	// RetryDelay espera antes da primeira nova tentativa.
	RetryDelay time.Duration
	// Backoff multiplica a espera a cada tentativa; 1 mantém o atraso fixo.
	Backoff float64
	// Notifier recebe o aviso da falha final. Nil usa apenas o log.
	Notifier notify.Notifier
	// Silent suprime o aviso (o log continua).
	Silent bool
}

// Policy padrões configuráveis por processo. Retries é o número exato de
// novas tentativas: zero desliga o retry.
type Policy struct {
	Retries    int
	RetryDelay time.Duration
	Backoff    float64
	Notifier   notify.Notifier
}

// Apply preenche campos ausentes de opts com a política.
func (p Policy) Apply(opts Options) Options {
	if opts.Retries == 0 {
		opts.Retries = p.Retries
		if p.Retries == 0 {
			opts.Retries = NoRetry
		}
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = p.RetryDelay
	}
	if opts.Backoff == 0 {
		opts.Backoff = p.Backoff
	}
	if opts.Notifier == nil {
		opts.Notifier = p.Notifier
	}
	return opts
}

// Result empacota dado, erro categorizado e status.
type Result[T any] struct {
	Data     T
	Err      *apperr.Error
	Status   Status
	Attempts int
}

// OK indica sucesso.
func (r Result[T]) OK() bool { return r.Status == StatusSuccess }

// Unwrap devolve no formato (valor, erro) para serviços.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		return r.Data, r.Err
	}
	return r.Data, nil
}

// sleep é trocado nos testes.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ShouldRetry: autenticação, autorização e validação nunca são repetidas.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return apperr.Retryable(apperr.CategoryOf(err))
}

// Do executa fn com retry limitado. Nunca propaga panic de fn como erro.
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), opts Options) Result[T] {
	opts = normalize(opts)
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	var (
		zero     T
		lastErr  *apperr.Error
		delay    = opts.RetryDelay
		attempts = 0
	)

	for {
		attempts++
		data, err := fn(ctx)
		if err == nil {
			obs.ObserveAttempt(opts.Context, "success")
			return Result[T]{Data: data, Status: StatusSuccess, Attempts: attempts}
		}

		lastErr = apperr.Categorize(err)
		canRetry := apperr.Retryable(lastErr.Category) && attempts <= opts.Retries && ctx.Err() == nil
		if !canRetry {
			obs.ObserveAttempt(opts.Context, "error")
			break
		}

		obs.ObserveAttempt(opts.Context, "retry")
		logger.Warn().Err(err).
			Str("context", opts.Context).
			Str("category", string(lastErr.Category)).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("request: nova tentativa")

		if err := sleep(ctx, delay); err != nil {
			logger.Debug().Err(err).Str("context", opts.Context).Msg("request: espera interrompida")
			break
		}
		delay = time.Duration(float64(delay) * opts.Backoff)
	}

	logger.Error().Err(lastErr).
		Str("context", opts.Context).
		Str("category", string(lastErr.Category)).
		Int("attempts", attempts).
		Msg("request: falha")

	if !opts.Silent && opts.Notifier != nil {
		msg := opts.ErrorMessage
		if msg == "" {
			msg = lastErr.Message
		}
		_ = opts.Notifier.Notify(ctx, notify.Message{Title: opts.Context, Text: msg, Level: notify.LevelError})
	}

	if opts.ErrorMessage != "" && lastErr.Message != opts.ErrorMessage {
		wrapped := *lastErr
		if wrapped.Err == nil {
			wrapped.Err = apperr.New(lastErr.Category, lastErr.Code, lastErr.Message)
		}
		wrapped.Message = opts.ErrorMessage
		lastErr = &wrapped
	}

	return Result[T]{Data: zero, Err: lastErr, Status: StatusError, Attempts: attempts}
}

// Exec atalho para operações sem valor de retorno.
func Exec(ctx context.Context, fn func(context.Context) error, opts Options) Result[struct{}] {
	return Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts)
}

func normalize(opts Options) Options {
	switch {
	case opts.Retries < 0:
		opts.Retries = 0
	case opts.Retries == 0:
		opts.Retries = DefaultRetries
	case opts.Retries > MaxRetries:
		opts.Retries = MaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Backoff < 1 {
		opts.Backoff = DefaultBackoff
	}
	return opts
}
