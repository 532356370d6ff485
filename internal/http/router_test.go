package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/config"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/repo"
	"github.com/digiurbis/portal/internal/service"
)

type stubAuth struct {
	jwt        *auth.JWTManager
	user       *identity.User
	profileErr error
	loginErr   error
	refreshed  []string
	loggedOut  []string
}

func (s *stubAuth) result(kind identity.Kind) *service.LoginResult {
	return &service.LoginResult{
		Kind:          kind,
		AccessToken:   "access",
		RefreshToken:  "refresh-" + string(kind),
		Subject:       s.user.ID(),
		User:          s.user,
		RefreshExpiry: time.Now().Add(time.Hour),
		AccessExpiry:  time.Now().Add(15 * time.Minute),
	}
}

func (s *stubAuth) Login(ctx context.Context, email, password string, kind identity.Kind) (*service.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.result(kind), nil
}

func (s *stubAuth) LoginAdminWithUser(ctx context.Context, user repo.Usuario) (*service.LoginResult, error) {
	return s.result(identity.KindAdmin), nil
}

func (s *stubAuth) Register(ctx context.Context, in service.RegisterInput, kind identity.Kind) (*service.LoginResult, error) {
	return s.result(kind), nil
}

func (s *stubAuth) Refresh(ctx context.Context, kind identity.Kind, rawToken string) (*service.LoginResult, error) {
	s.refreshed = append(s.refreshed, string(kind)+":"+rawToken)
	if rawToken == "expired" {
		return nil, service.ErrRefreshInvalid
	}
	return s.result(kind), nil
}

func (s *stubAuth) Logout(ctx context.Context, kind identity.Kind, rawToken string) error {
	s.loggedOut = append(s.loggedOut, string(kind)+":"+rawToken)
	return nil
}

func (s *stubAuth) ResolveProfile(ctx context.Context, subject uuid.UUID) (*identity.User, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.user, nil
}

func (s *stubAuth) RequestPasswordReset(ctx context.Context, email string) error { return nil }

func (s *stubAuth) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return nil
}

func (s *stubAuth) UpdatePassword(ctx context.Context, kind identity.Kind, subject uuid.UUID, newPassword string) error {
	return nil
}

func (s *stubAuth) JWT() *auth.JWTManager { return s.jwt }

type stubAuthz struct{ deny bool }

func (a stubAuthz) Authorize(ctx context.Context, subject uuid.UUID, moduleID string, action identity.Action) (*identity.User, error) {
	if a.deny {
		return nil, service.ErrForbidden
	}
	return &identity.User{Kind: identity.KindAdmin, Admin: &identity.AdminProfile{ID: subject}}, nil
}

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/compras/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Subject", middleware.GetSubject(r.Context()).String())
		w.WriteHeader(http.StatusNoContent)
	})
}

func testConfig() *config.Config {
	return &config.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		WebAuthnRPID:     "localhost",
		WebAuthnRPOrigin: "http://localhost:5173",
		WebAuthnRPName:   "digiUrbis",
		RateLimitPublic:  config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:    config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func newTestRouter(t *testing.T, a *stubAuth, authz middleware.Authorizer) http.Handler {
	t.Helper()
	if a.jwt == nil {
		a.jwt = auth.NewJWTManager(strings.Repeat("s", 32), 15*time.Minute)
	}
	if a.user == nil {
		a.user = &identity.User{Kind: identity.KindAdmin, Admin: &identity.AdminProfile{ID: uuid.New(), Nome: "Ana"}}
	}
	h, err := NewRouter(Deps{
		Config:  testConfig(),
		Auth:    a,
		Authz:   authz,
		Modules: []Module{pingModule{}},
	})
	require.NoError(t, err)
	return h
}

func bearer(t *testing.T, a *stubAuth, subject uuid.UUID, kind identity.Kind) string {
	t.Helper()
	token, _, err := a.jwt.GenerateAccessToken(subject.String(), kind, "")
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, &stubAuth{}, stubAuthz{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"},"error":null}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "urbis_http_requests_total")
}

func TestModulesRequireToken(t *testing.T) {
	a := &stubAuth{}
	r := newTestRouter(t, a, stubAuthz{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compras/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	subject := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/compras/ping", nil)
	req.Header.Set("Authorization", bearer(t, a, subject, identity.KindAdmin))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, subject.String(), rec.Header().Get("X-Subject"))
}

func TestLoginSetsRefreshCookiePerKind(t *testing.T) {
	r := newTestRouter(t, &stubAuth{}, stubAuthz{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/backoffice/login", strings.NewReader(`{"email":"ana@urbis.gov.br","senha":"segredo123"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, refreshCookieBackoffice, cookies[0].Name)
	assert.Equal(t, "refresh-admin", cookies[0].Value)
	assert.False(t, cookies[0].Secure)

	var body struct {
		Data loginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access", body.Data.AccessToken)
	assert.Equal(t, identity.KindAdmin, body.Data.User.Kind)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/prefeito/login", strings.NewReader(`{"email":"a@b.c","senha":"x"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	r := newTestRouter(t, &stubAuth{loginErr: service.ErrInvalidCredentials}, stubAuthz{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/cidadao/login", strings.NewReader(`{"email":"a@b.com","senha":"errada"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"AUTH"`)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRefreshFromCookieAndBody(t *testing.T) {
	a := &stubAuth{}
	r := newTestRouter(t, a, stubAuthz{})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieCidadao, Value: "raw-cookie"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"tipo":"admin","refresh_token":"raw-body"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"tipo":"admin","refresh_token":"expired"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, []string{"citizen:raw-cookie", "admin:raw-body", "admin:expired"}, a.refreshed)
}

func TestLogoutClearsBothCookies(t *testing.T) {
	a := &stubAuth{}
	r := newTestRouter(t, a, stubAuthz{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieBackoffice, Value: "raw"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"admin:raw"}, a.loggedOut)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestMeWithoutProfileEndsSession(t *testing.T) {
	a := &stubAuth{profileErr: service.ErrProfileNotFound}
	r := newTestRouter(t, a, stubAuthz{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, a, uuid.New(), identity.KindCitizen))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "PROFILE_NOT_FOUND")
	assert.Len(t, rec.Result().Cookies(), 2)
}

func TestMeReturnsProfile(t *testing.T) {
	a := &stubAuth{}
	r := newTestRouter(t, a, stubAuthz{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, a, a.user.ID(), identity.KindAdmin))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"nome":"Ana"`)
}

func TestAdminRegisterNeedsPermission(t *testing.T) {
	a := &stubAuth{}
	body := `{"nome":"Bruno","email":"bruno@urbis.gov.br","senha":"segredo123"}`

	r := newTestRouter(t, a, stubAuthz{deny: true})
	req := httptest.NewRequest(http.MethodPost, "/auth/admin/register", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, a, uuid.New(), identity.KindAdmin))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	r = newTestRouter(t, a, stubAuthz{})
	req = httptest.NewRequest(http.MethodPost, "/auth/admin/register", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, a, uuid.New(), identity.KindAdmin))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestPasskeyRegisterRestrictedToAdmins(t *testing.T) {
	a := &stubAuth{}
	r := newTestRouter(t, a, stubAuthz{})

	req := httptest.NewRequest(http.MethodPost, "/auth/passkey/register/start", nil)
	req.Header.Set("Authorization", bearer(t, a, uuid.New(), identity.KindCitizen))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebAuthnTransports(t *testing.T) {
	got := toAuthenticatorTransports([]string{"USB", "cable", "custom"})
	require.Len(t, got, 3)
	assert.Equal(t, "usb", string(got[0]))
	assert.Equal(t, "hybrid", string(got[1]))
	assert.Equal(t, "custom", string(got[2]))
	assert.Nil(t, toAuthenticatorTransports(nil))
}
