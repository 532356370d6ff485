package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost/urbis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("porta padrão: %d", cfg.Port)
	}
	if cfg.Storage.Provider != "noop" || cfg.Storage.BucketAnexos != "anexos" || cfg.Storage.BucketDocumentos != "documentos" {
		t.Fatalf("storage padrão inesperado: %+v", cfg.Storage)
	}
	if cfg.Request.Retries != 3 || cfg.Request.RetryDelay != time.Second || cfg.Request.Backoff != 2 {
		t.Fatalf("política de retry padrão inesperada: %+v", cfg.Request)
	}
	if cfg.Cache.Short != 30*time.Second || cfg.Cache.Default != 5*time.Minute || cfg.Cache.Long != 30*time.Minute {
		t.Fatalf("cache padrão inesperado: %+v", cfg.Cache)
	}
	if cfg.ElevatedRole != "super_admin" {
		t.Fatalf("papel elevado: %q", cfg.ElevatedRole)
	}
}

func TestLoadCapsRetries(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REQUEST_RETRIES", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Request.Retries != 5 {
		t.Fatalf("esperava teto 5, obtive %d", cfg.Request.Retries)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"JWT_SECRET":       "curto",
		"STORAGE_PROVIDER": "ftp",
		"REQUEST_BACKOFF":  "0.5",
		"CACHE_TTL_SHORT":  "abc",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("esperava erro para %s=%s", key, val)
			}
		})
	}
}

func TestLoadS3RequiresCredentials(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_PROVIDER", "s3")

	if _, err := Load(); err == nil {
		t.Fatal("esperava erro sem credenciais")
	}

	t.Setenv("S3_ENDPOINT", "https://s3.example.com")
	t.Setenv("S3_ACCESS_KEY", "a")
	t.Setenv("S3_SECRET_KEY", "b")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadReportsEveryInvalidValue(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "curto")
	t.Setenv("PORT", "abc")

	_, err := Load()
	if err == nil {
		t.Fatal("esperava erro")
	}
	for _, want := range []string{"DB_DSN", "REDIS_URL", "JWT_SECRET", "PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("erro não menciona %s: %v", want, err)
		}
	}
}

func TestLoadRateLimitsAndOrigins(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ALLOW_ORIGINS", " https://a.gov.br, ,*.cidade.gov.br ")
	t.Setenv("RATE_LIMIT_AUTH_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "*.cidade.gov.br" {
		t.Fatalf("origens: %v", cfg.AllowOrigins)
	}
	if cfg.RateLimitAuth.RequestsPerSecond != 2.5 || cfg.RateLimitAuth.Burst != 40 {
		t.Fatalf("rate limit: %+v", cfg.RateLimitAuth)
	}
}

func TestLoadZeroRetriesIsKept(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REQUEST_RETRIES", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Request.Retries != 0 {
		t.Fatalf("esperava 0 novas tentativas, obtive %d", cfg.Request.Retries)
	}
}
