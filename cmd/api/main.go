package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/assistencia"
	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/cache"
	"github.com/digiurbis/portal/internal/compras"
	"github.com/digiurbis/portal/internal/config"
	"github.com/digiurbis/portal/internal/db"
	"github.com/digiurbis/portal/internal/documentos"
	"github.com/digiurbis/portal/internal/educacao"
	"github.com/digiurbis/portal/internal/gabinete"
	internalhttp "github.com/digiurbis/portal/internal/http"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/repo"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/rh"
	"github.com/digiurbis/portal/internal/saude"
	"github.com/digiurbis/portal/internal/service"
	"github.com/digiurbis/portal/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	identity.ElevatedRole = cfg.ElevatedRole

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if applied > 0 {
		log.Info().Int("aplicadas", applied).Msg("migrações aplicadas")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	blobStore, err := storage.Open(cfg.Storage.Provider, storage.S3Config{
		Endpoint:     cfg.Storage.Endpoint,
		Region:       cfg.Storage.Region,
		Bucket:       cfg.Storage.BucketAnexos,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		PublicDomain: cfg.Storage.PublicDomain,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	notifiers := notify.Fanout{notify.NewLogNotifier(log.Logger)}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL))
	}

	client := backend.New(pool, blobStore, backend.Buckets{
		Anexos:     cfg.Storage.BucketAnexos,
		Documentos: cfg.Storage.BucketDocumentos,
	})
	queryCache := cache.New(redisClient, cache.TTLs{
		Short:   cfg.Cache.Short,
		Default: cfg.Cache.Default,
		Long:    cfg.Cache.Long,
	})
	policy := request.Policy{
		Retries:    cfg.Request.Retries,
		RetryDelay: cfg.Request.RetryDelay,
		Backoff:    cfg.Request.Backoff,
		Notifier:   notifiers,
	}

	events := service.NewEventHub()
	unsubscribe := events.Subscribe(func(ctx context.Context, evt service.Event) {
		log.Info().
			Str("evento", string(evt.Type)).
			Str("id", evt.ID).
			Str("subject", evt.Subject.String()).
			Str("tipo", string(evt.Kind)).
			Msg("auth")
	})
	defer unsubscribe()

	repository := repo.New(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(repository, redisClient, jwtManager, service.AuthOptions{
		RefreshTTL: cfg.JWTRefreshTTL,
		ResetTTL:   cfg.ResetTokenTTL,
		ResetURL:   cfg.ResetURL,
		Notifier:   notifiers,
		Events:     events,
	})
	rbac := service.NewRBACService(authService)

	anexosRepo := attachment.NewRepository(pool)
	pending := attachment.NewPendingSet(redisClient)
	anexos := attachment.NewService(anexosRepo, client, pending, cfg.Storage.BucketAnexos)
	arquivos := attachment.NewService(anexosRepo, client, pending, cfg.Storage.BucketDocumentos)

	reconciler := attachment.NewReconciler(pending, anexosRepo, client, attachment.ReconcilerConfig{
		Interval: cfg.Reconcile.Interval,
		Grace:    cfg.Reconcile.Grace,
	}, notifiers, log.Logger.With().Str("componente", "reconciler").Logger())
	reconciler.Start(ctx)
	defer reconciler.Stop()

	comprasSvc := compras.NewService(compras.NewRepository(client), anexos, queryCache, policy)
	rhSvc := rh.NewService(rh.NewRepository(client), queryCache, policy)
	assistenciaSvc := assistencia.NewService(assistencia.NewRepository(client), anexos, queryCache, policy)
	educacaoSvc := educacao.NewService(educacao.NewRepository(client), queryCache, policy)
	documentosSvc := documentos.NewService(documentos.NewRepository(client), arquivos, queryCache, policy)
	saudeSvc := saude.NewService(saude.NewRepository(client), anexos, queryCache, policy)
	gabineteSvc := gabinete.NewService(gabinete.NewRepository(client), queryCache, policy, map[string]gabinete.Counter{
		"compras":     comprasSvc,
		"rh":          rhSvc,
		"assistencia": assistenciaSvc,
		"educacao":    educacaoSvc,
		"documentos":  documentosSvc,
		"saude":       saudeSvc,
	})

	handler, err := internalhttp.NewRouter(internalhttp.Deps{
		Config:   cfg,
		Database: pool,
		Redis:    redisClient,
		Auth:     authService,
		Authz:    rbac,
		Passkeys: repository,
		Modules: []internalhttp.Module{
			compras.NewHandler(comprasSvc, rbac),
			rh.NewHandler(rhSvc, rbac),
			assistencia.NewHandler(assistenciaSvc, rbac),
			educacao.NewHandler(educacaoSvc, rbac),
			documentos.NewHandler(documentosSvc, rbac),
			saude.NewHandler(saudeSvc, rbac),
			gabinete.NewHandler(gabineteSvc, rbac),
		},
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
