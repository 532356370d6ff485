package attachment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/obs"
)

// ReconcilerConfig intervalo do loop e idade mínima de uma marcação.
type ReconcilerConfig struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int64
}

// Reconciler remove arquivos enviados cujo metadado nunca foi gravado.
type Reconciler struct {
	pending  *PendingSet
	store    Store
	blobs    Blobs
	cfg      ReconcilerConfig
	notifier notify.Notifier
	logger   zerolog.Logger
	now      func() time.Time

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(pending *PendingSet, store Store, blobs Blobs, cfg ReconcilerConfig, notifier notify.Notifier, logger zerolog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 15 * time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Reconciler{
		pending:  pending,
		store:    store,
		blobs:    blobs,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Start inicia o loop. Chamadas repetidas não criam novos loops.
func (r *Reconciler) Start(parent context.Context) {
	r.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		r.cancel = cancel
		r.done = make(chan struct{})
		go r.runLoop(ctx)
	})
}

// Stop encerra o loop e aguarda a goroutine.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.Interval).Msg("reconciliador: loop iniciado")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciliador: loop encerrado")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("reconciliador: execução falhou")
			}
		}
	}
}

// RunOnce processa marcações mais antigas que a carência e devolve quantos arquivos removeu.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	items, err := r.pending.Older(ctx, r.now().Add(-r.cfg.Grace), r.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("listar pendentes: %w", err)
	}

	removed := 0
	for _, p := range items {
		referenced, err := r.store.ExistsPath(ctx, p.Bucket, p.Path)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", p.Path).Msg("reconciliador: verificação falhou")
			continue
		}
		if !referenced {
			if err := r.blobs.Remove(ctx, p.Bucket, p.Path); err != nil {
				r.logger.Warn().Err(err).Str("path", p.Path).Msg("reconciliador: remoção falhou")
				continue
			}
			removed++
			r.logger.Info().Str("bucket", p.Bucket).Str("path", p.Path).Msg("reconciliador: arquivo órfão removido")
		}
		if err := r.pending.Clear(ctx, p); err != nil {
			r.logger.Warn().Err(err).Str("path", p.Path).Msg("reconciliador: marcação não removida")
		}
	}

	obs.AddOrphansRemoved(removed)
	if removed > 0 {
		_ = r.notifier.Notify(ctx, notify.Message{
			Title: "Anexos órfãos",
			Text:  fmt.Sprintf("%d arquivo(s) sem metadado removido(s) do armazenamento", removed),
			Level: notify.LevelWarning,
		})
	}
	return removed, nil
}
