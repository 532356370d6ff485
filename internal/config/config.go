package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port             int
	DBDSN            string
	RedisURL         string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	JWTSecret        string
	AllowOrigins     []string
	RateLimitPublic  RateLimitConfig
	RateLimitAuth    RateLimitConfig
	WebAuthnRPID     string
	WebAuthnRPOrigin string
	WebAuthnRPName   string
	Storage          StorageConfig
	Request          RequestConfig
	Cache            CacheConfig
	ResetTokenTTL    time.Duration
	ResetURL         string
	NotifyWebhookURL string
	Reconcile        ReconcileConfig
	ElevatedRole     string
}

// StorageConfig seleciona o provedor de blobs e os buckets usados.
type StorageConfig struct {
	Provider         string
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	PublicDomain     string
	BucketAnexos     string
	BucketDocumentos string
}

// RequestConfig política padrão de retry do wrapper de requisições.
type RequestConfig struct {
	Retries    int
	RetryDelay time.Duration
	Backoff    float64
}

// CacheConfig tempos de validade do cache de consultas.
type CacheConfig struct {
	Short   time.Duration
	Default time.Duration
	Long    time.Duration
}

// ReconcileConfig controla a limpeza de uploads órfãos.
type ReconcileConfig struct {
	Interval time.Duration
	Grace    time.Duration
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

const maxRetries = 5

// Load lê o ambiente (e um .env opcional). Todos os valores inválidos são
// reportados juntos.
func Load() (*Config, error) {
	_ = godotenv.Load()

	e := &env{}
	cfg := &Config{
		Port:          e.integer("PORT", 8080),
		DBDSN:         e.required("DB_DSN"),
		RedisURL:      e.required("REDIS_URL"),
		JWTSecret:     e.str("JWT_SECRET", ""),
		JWTAccessTTL:  e.duration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: e.duration("JWT_REFRESH_TTL", 30*24*time.Hour),
		AllowOrigins:  e.list("ALLOW_ORIGINS"),
		RateLimitPublic: RateLimitConfig{
			RequestsPerSecond: e.decimal("RATE_LIMIT_PUBLIC_RPS", 10),
			Burst:             e.integer("RATE_LIMIT_PUBLIC_BURST", 20),
		},
		RateLimitAuth: RateLimitConfig{
			RequestsPerSecond: e.decimal("RATE_LIMIT_AUTH_RPS", 10),
			Burst:             e.integer("RATE_LIMIT_AUTH_BURST", 40),
		},
		WebAuthnRPID:     e.str("WEBAUTHN_RP_ID", "localhost"),
		WebAuthnRPOrigin: e.str("WEBAUTHN_RP_ORIGIN", "http://localhost:5173"),
		WebAuthnRPName:   e.str("WEBAUTHN_RP_NAME", "digiUrbis"),
		Storage: StorageConfig{
			Provider:         strings.ToLower(e.str("STORAGE_PROVIDER", "noop")),
			Endpoint:         e.str("S3_ENDPOINT", ""),
			Region:           e.str("S3_REGION", "auto"),
			AccessKey:        e.str("S3_ACCESS_KEY", ""),
			SecretKey:        e.str("S3_SECRET_KEY", ""),
			PublicDomain:     e.str("S3_PUBLIC_DOMAIN", ""),
			BucketAnexos:     e.str("BUCKET_ANEXOS", "anexos"),
			BucketDocumentos: e.str("BUCKET_DOCUMENTOS", "documentos"),
		},
		Request: RequestConfig{
			Retries:    min(e.integer("REQUEST_RETRIES", 3), maxRetries),
			RetryDelay: e.duration("REQUEST_RETRY_DELAY", time.Second),
			Backoff:    e.decimal("REQUEST_BACKOFF", 2),
		},
		Cache: CacheConfig{
			Short:   e.duration("CACHE_TTL_SHORT", 30*time.Second),
			Default: e.duration("CACHE_TTL_DEFAULT", 5*time.Minute),
			Long:    e.duration("CACHE_TTL_LONG", 30*time.Minute),
		},
		ResetTokenTTL:    e.duration("RESET_TOKEN_TTL", time.Hour),
		ResetURL:         e.str("RESET_URL", "http://localhost:5173/reset-password"),
		NotifyWebhookURL: e.str("NOTIFY_WEBHOOK_URL", ""),
		Reconcile: ReconcileConfig{
			Interval: e.duration("RECONCILE_INTERVAL", 10*time.Minute),
			Grace:    e.duration("RECONCILE_GRACE", 15*time.Minute),
		},
		ElevatedRole: e.str("ELEVATED_ROLE", "super_admin"),
	}

	if cfg.Port <= 0 {
		e.fail("PORT inválida")
	}
	if len(cfg.JWTSecret) < 32 {
		e.fail("JWT_SECRET deve ter pelo menos 32 caracteres")
	}
	if cfg.Request.Backoff < 1 {
		e.fail("REQUEST_BACKOFF deve ser >= 1")
	}
	switch st := cfg.Storage; st.Provider {
	case "noop", "memory":
	case "s3", "r2":
		if st.Endpoint == "" || st.AccessKey == "" || st.SecretKey == "" {
			e.fail("STORAGE_PROVIDER=" + st.Provider + " exige S3_ENDPOINT, S3_ACCESS_KEY e S3_SECRET_KEY")
		}
	default:
		e.fail("STORAGE_PROVIDER inválido")
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env lê variáveis sem interromper no primeiro erro. Valores vazios ou só com
// espaços contam como ausentes.
type env struct {
	errs []error
}

func (e *env) fail(msg string) { e.errs = append(e.errs, errors.New(msg)) }

func (e *env) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *env) required(key string) string {
	v, ok := e.lookup(key)
	if !ok {
		e.fail(key + " obrigatório")
	}
	return v
}

func (e *env) list(key string) []string {
	var out []string
	for _, item := range strings.Split(e.str(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (e *env) integer(key string, def int) int {
	return parse(e, key, def, strconv.Atoi)
}

func (e *env) decimal(key string, def float64) float64 {
	return parse(e, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	return parse(e, key, def, time.ParseDuration)
}

func parse[T any](e *env, key string, def T, conv func(string) (T, error)) T {
	raw, ok := e.lookup(key)
	if !ok {
		return def
	}
	v, err := conv(raw)
	if err != nil {
		e.fail(key + " inválido")
		return def
	}
	return v
}
