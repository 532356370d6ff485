package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/config"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/obs"
	"github.com/digiurbis/portal/internal/repo"
	"github.com/digiurbis/portal/internal/service"
)

// authAPI operações de sessão usadas pelas rotas /auth e /me.
type authAPI interface {
	Login(ctx context.Context, email, password string, kind identity.Kind) (*service.LoginResult, error)
	LoginAdminWithUser(ctx context.Context, user repo.Usuario) (*service.LoginResult, error)
	Register(ctx context.Context, in service.RegisterInput, kind identity.Kind) (*service.LoginResult, error)
	Refresh(ctx context.Context, kind identity.Kind, rawToken string) (*service.LoginResult, error)
	Logout(ctx context.Context, kind identity.Kind, rawToken string) error
	ResolveProfile(ctx context.Context, subject uuid.UUID) (*identity.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	UpdatePassword(ctx context.Context, kind identity.Kind, subject uuid.UUID, newPassword string) error
	JWT() *auth.JWTManager
}

// PasskeyStore acesso às credenciais WebAuthn dos servidores.
type PasskeyStore interface {
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]repo.PasskeyCredential, error)
	GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (repo.PasskeyCredential, error)
	InsertPasskey(ctx context.Context, c repo.PasskeyCredential) (repo.PasskeyCredential, error)
	UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount int64, usedAt time.Time) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Module rotas de um módulo de domínio, montadas depois de middleware.Auth.
type Module interface {
	RegisterRoutes(r chi.Router)
}

// Deps dependências do roteador montadas em cmd/api.
type Deps struct {
	Config   *config.Config
	Database pinger
	Redis    redisCommander
	Auth     authAPI
	Authz    middleware.Authorizer
	Passkeys PasskeyStore
	Modules  []Module
}

type Handler struct {
	cfg           *config.Config
	db            pinger
	redis         redisCommander
	authService   authAPI
	authz         middleware.Authorizer
	passkeys      PasskeyStore
	webauthn      *webauthn.WebAuthn
	publicLimiter *middleware.RateLimiter
	authLimiter   *middleware.RateLimiter
	devCookies    bool
}

const (
	passkeyRegisterSessionPrefix = "webauthn:register:"
	passkeyLoginSessionPrefix    = "webauthn:login:"
	passkeySessionTTL            = 5 * time.Minute
)

// NewRouter devolve roteador configurado.
func NewRouter(deps Deps) (http.Handler, error) {
	cfg := deps.Config
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthnRPName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     []string{cfg.WebAuthnRPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	h := &Handler{
		cfg:           cfg,
		db:            deps.Database,
		redis:         deps.Redis,
		authService:   deps.Auth,
		authz:         deps.Authz,
		passkeys:      deps.Passkeys,
		webauthn:      wa,
		publicLimiter: middleware.NewRateLimiter("public", cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   middleware.NewRateLimiter("auth", cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	obs.Init()

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Recover)
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(obs.Instrument)

	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Group(func(public chi.Router) {
		public.Use(middleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(a chi.Router) {
			a.Post("/{tipo}/login", h.Login)
			a.Post("/cidadao/register", h.RegisterCidadao)
			a.Post("/passkey/login/start", h.PasskeyLoginStart)
			a.Post("/passkey/login/finish", h.PasskeyLoginFinish)
			a.Post("/refresh", h.Refresh)
			a.Post("/logout", h.Logout)
			a.Post("/password/reset", h.RequestPasswordReset)
			a.Post("/password/confirm", h.ConfirmPasswordReset)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(middleware.Auth(h.authService.JWT()))
		private.Use(middleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.Put("/auth/password", h.UpdatePassword)
		private.With(middleware.RequireAction(h.authz, service.ModuleUsuarios, identity.ActionCreate)).
			Post("/auth/admin/register", h.RegisterAdmin)
		private.Route("/auth/passkey/register", func(pr chi.Router) {
			pr.Use(middleware.RequireKind(identity.KindAdmin))
			pr.Post("/start", h.PasskeyRegisterStart)
			pr.Post("/finish", h.PasskeyRegisterFinish)
		})

		for _, m := range deps.Modules {
			m.RegisterRoutes(private)
		}
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.db != nil {
		dbErr = h.db.Ping(ctx)
	}
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}

	if dbErr != nil || redisErr != nil {
		respond.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
