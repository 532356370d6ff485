package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/session"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "error": nil})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "error": map[string]any{"code": code, "message": message}})
}

type fakeAPI struct {
	user      *identity.User
	noProfile bool
	refreshOK bool
	logouts   atomic.Int32
	refreshes atomic.Int32
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	login := func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"access_token":  "valid",
			"refresh_token": "r1",
			"expires_at":    time.Now().Add(15 * time.Minute),
			"user":          f.user,
		})
	}
	mux.HandleFunc("/auth/backoffice/login", login)
	mux.HandleFunc("/auth/cidadao/login", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "AUTH", "credenciais inválidas")
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		if !f.refreshOK {
			writeErr(w, http.StatusUnauthorized, "AUTH", "refresh token inválido")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"access_token":  "valid",
			"refresh_token": "r2",
			"expires_at":    time.Now().Add(15 * time.Minute),
			"user":          f.user,
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logouts.Add(1)
		writeData(w, http.StatusOK, map[string]string{"status": "logged_out"})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid" {
			writeErr(w, http.StatusUnauthorized, "AUTH", "token inválido")
			return
		}
		if f.noProfile {
			writeErr(w, http.StatusUnauthorized, "PROFILE_NOT_FOUND", "perfil não encontrado")
			return
		}
		writeData(w, http.StatusOK, map[string]any{"user": f.user})
	})
	mux.HandleFunc("/compras/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid" {
			writeErr(w, http.StatusUnauthorized, "AUTH", "token inválido")
			return
		}
		if r.Method == http.MethodPost {
			writeErr(w, http.StatusBadRequest, "VALIDATION", "informe ao menos um item")
			return
		}
		writeData(w, http.StatusOK, []map[string]string{{"protocolo": "COMP-2026-000001"}})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", Options{Policy: request.Policy{Retries: -1}})
}

func admin() *identity.User {
	return &identity.User{Kind: identity.KindAdmin, Admin: &identity.AdminProfile{ID: uuid.New(), Nome: "Ana", Role: "super_admin"}}
}

func TestSignInStoresSessionAndEmits(t *testing.T) {
	api := &fakeAPI{user: admin()}
	c := newTestClient(t, api)

	var events []session.Event
	unsubscribe := c.OnAuthStateChange(func(evt session.Event, s *session.Session) { events = append(events, evt) })
	defer unsubscribe()

	s, u, err := c.SignIn(context.Background(), "ana@urbis.gov.br", "segredo123", identity.KindAdmin)
	require.NoError(t, err)
	assert.Equal(t, "valid", s.AccessToken)
	assert.Equal(t, identity.KindAdmin, s.Kind)
	assert.Equal(t, api.user.ID(), s.Subject)
	assert.Equal(t, "Ana", u.Nome())
	assert.Same(t, s, c.Session())
	assert.Equal(t, []session.Event{session.EventSignedIn}, events)
}

func TestSignInErrorIsCategorized(t *testing.T) {
	c := newTestClient(t, &fakeAPI{user: admin()})

	_, _, err := c.SignIn(context.Background(), "x@y.com", "errada", identity.KindCitizen)
	require.Error(t, err)
	assert.Equal(t, apperr.Authentication, apperr.CategoryOf(err))
	assert.False(t, request.ShouldRetry(err))
	assert.Nil(t, c.Session())
}

func TestAuthedCallRefreshesOnce(t *testing.T) {
	api := &fakeAPI{user: admin(), refreshOK: true}
	c := newTestClient(t, api)
	c.UseSession(&session.Session{AccessToken: "stale", RefreshToken: "r1", Kind: identity.KindAdmin})

	var refreshed *session.Session
	c.OnAuthStateChange(func(evt session.Event, s *session.Session) {
		if evt == session.EventTokenRefreshed {
			refreshed = s
		}
	})

	var items []map[string]string
	require.NoError(t, c.Get(context.Background(), "/compras/", &items))
	require.Len(t, items, 1)
	assert.Equal(t, "COMP-2026-000001", items[0]["protocolo"])
	assert.Equal(t, int32(1), api.refreshes.Load())
	require.NotNil(t, refreshed)
	assert.Equal(t, "r2", refreshed.RefreshToken)
}

func TestAuthedCallValidationError(t *testing.T) {
	c := newTestClient(t, &fakeAPI{user: admin()})
	c.UseSession(&session.Session{AccessToken: "valid"})

	err := c.Post(context.Background(), "/compras/", map[string]any{"itens": []any{}}, nil)
	require.Error(t, err)
	e := apperr.Categorize(err)
	assert.Equal(t, apperr.Validation, e.Category)
	assert.Equal(t, "VALIDATION", e.Code)
}

func TestAuthedCallWithoutSession(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	err := c.Get(context.Background(), "/compras/", nil)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestFetchProfileByKind(t *testing.T) {
	api := &fakeAPI{user: admin()}
	c := newTestClient(t, api)
	s := &session.Session{AccessToken: "valid"}

	u, err := c.FetchProfile(context.Background(), s, identity.KindAdmin)
	require.NoError(t, err)
	require.NotNil(t, u)

	u, err = c.FetchProfile(context.Background(), s, identity.KindCitizen)
	require.NoError(t, err)
	assert.Nil(t, u)

	api.noProfile = true
	u, err = c.FetchProfile(context.Background(), s, identity.KindAdmin)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetSessionExpiredWithRejectedRefresh(t *testing.T) {
	api := &fakeAPI{user: admin()}
	c := newTestClient(t, api)

	s, err := c.GetSession(context.Background(), &session.Session{AccessToken: "old", RefreshToken: "r0", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, int32(1), api.refreshes.Load())

	stored := &session.Session{AccessToken: "valid", ExpiresAt: time.Now().Add(time.Hour)}
	s, err = c.GetSession(context.Background(), stored)
	require.NoError(t, err)
	assert.Same(t, stored, s)
}

func TestManagerOverHTTPWithoutProfile(t *testing.T) {
	api := &fakeAPI{user: admin(), noProfile: true}
	c := newTestClient(t, api)
	store := &session.MemoryStore{}
	require.NoError(t, store.Save(session.State{Session: &session.Session{AccessToken: "valid", RefreshToken: "r1", Kind: identity.KindAdmin, ExpiresAt: time.Now().Add(time.Hour)}}))

	var redirected string
	m := session.NewManager(c, store, session.Options{Redirect: func(p string) { redirected = p }})
	err := m.Start(context.Background())

	assert.ErrorIs(t, err, session.ErrProfileNotFound)
	assert.Equal(t, int32(1), api.logouts.Load())
	assert.Equal(t, session.LoginPath, redirected)
	assert.Nil(t, m.User())
	assert.Nil(t, c.Session())
}

func TestDecodeNonJSONError(t *testing.T) {
	err := decode(http.StatusBadGateway, []byte("<html>bad gateway</html>"), nil)
	require.Error(t, err)
	assert.Equal(t, apperr.Network, apperr.CategoryOf(err))
	assert.True(t, strings.HasPrefix(apperr.Categorize(err).Code, "HTTP_"))
}
