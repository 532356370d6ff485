package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/notify"
)

type fakeBackend struct {
	mu        sync.Mutex
	session   *Session
	admin     *identity.User
	citizen   *identity.User
	profErr   error
	signInErr error
	signIns   int
	signOuts  int
	fetched   []identity.Kind
	listeners []func(Event, *Session)
}

func (f *fakeBackend) GetSession(ctx context.Context, stored *Session) (*Session, error) {
	return f.session, nil
}

func (f *fakeBackend) FetchProfile(ctx context.Context, s *Session, kind identity.Kind) (*identity.User, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, kind)
	f.mu.Unlock()
	if f.profErr != nil {
		return nil, f.profErr
	}
	if kind == identity.KindAdmin {
		return f.admin, nil
	}
	return f.citizen, nil
}

func (f *fakeBackend) SignIn(ctx context.Context, email, password string, kind identity.Kind) (*Session, *identity.User, error) {
	f.mu.Lock()
	f.signIns++
	f.mu.Unlock()
	if f.signInErr != nil {
		return nil, nil, f.signInErr
	}
	s := &Session{AccessToken: "a", RefreshToken: "r", Kind: kind}
	f.emit(EventSignedIn, s)
	return s, nil, nil
}

func (f *fakeBackend) SignUp(ctx context.Context, data RegisterData, kind identity.Kind) (*Session, *identity.User, error) {
	s := &Session{AccessToken: "a", Kind: kind}
	u := &identity.User{Kind: identity.KindCitizen, Citizen: &identity.CitizenProfile{ID: uuid.New(), Nome: data.Nome}}
	return s, u, nil
}

func (f *fakeBackend) SignOut(ctx context.Context, s *Session) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	f.emit(EventSignedOut, nil)
	return nil
}

func (f *fakeBackend) ResetPassword(ctx context.Context, email string) error { return nil }

func (f *fakeBackend) UpdatePassword(ctx context.Context, s *Session, newPassword string) error {
	return nil
}

func (f *fakeBackend) OnAuthStateChange(fn func(Event, *Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners = nil
	}
}

func (f *fakeBackend) emit(evt Event, s *Session) {
	f.mu.Lock()
	ls := append([]func(Event, *Session){}, f.listeners...)
	f.mu.Unlock()
	for _, l := range ls {
		l(evt, s)
	}
}

type recordingToast struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingToast) Notify(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func adminUser(perms ...identity.Permission) *identity.User {
	return &identity.User{Kind: identity.KindAdmin, Admin: &identity.AdminProfile{ID: uuid.New(), Role: "servidor", Permissions: perms}}
}

func TestStartWithoutProfileSignsOutOnce(t *testing.T) {
	backend := &fakeBackend{session: &Session{AccessToken: "a", Kind: identity.KindCitizen}}
	store := &MemoryStore{}
	toast := &recordingToast{}
	var redirects []string

	m := NewManager(backend, store, Options{Toast: toast, Redirect: func(p string) { redirects = append(redirects, p) }})
	err := m.Start(context.Background())

	require.ErrorIs(t, err, ErrProfileNotFound)
	st := m.State()
	assert.Nil(t, st.User)
	assert.Nil(t, st.Session)
	assert.Equal(t, 1, backend.signOuts)
	assert.Equal(t, []identity.Kind{identity.KindAdmin, identity.KindCitizen}, backend.fetched)
	assert.Equal(t, []string{LoginPath}, redirects)
	require.Len(t, toast.msgs, 1)
	assert.Equal(t, notify.LevelError, toast.msgs[0].Level)

	saved, _ := store.Load()
	assert.Nil(t, saved.Session)
	assert.False(t, m.Loading())
}

func TestStartFailedProfileFetchEndsInLogout(t *testing.T) {
	backend := &fakeBackend{
		session: &Session{AccessToken: "a"},
		profErr: apperr.New(apperr.Network, "UNAVAILABLE", "fora do ar"),
	}
	m := NewManager(backend, &MemoryStore{}, Options{})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, backend.signOuts)
	assert.Nil(t, m.User())
}

func TestStartRunsOnce(t *testing.T) {
	backend := &fakeBackend{session: &Session{AccessToken: "a"}, admin: adminUser()}
	m := NewManager(backend, &MemoryStore{}, Options{})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, []identity.Kind{identity.KindAdmin}, backend.fetched)
	assert.Len(t, backend.listeners, 1)
	assert.Equal(t, identity.KindAdmin, m.User().Kind)
}

func TestStartWithoutSessionMarksInitialized(t *testing.T) {
	store := &MemoryStore{}
	m := NewManager(&fakeBackend{}, store, Options{})

	require.NoError(t, m.Start(context.Background()))
	st, _ := store.Load()
	assert.True(t, st.Initialized)
	assert.Nil(t, st.Session)
	assert.True(t, m.State().Initialized)
}

func TestLoginResolvesProfileAndPersists(t *testing.T) {
	backend := &fakeBackend{admin: adminUser(identity.Permission{ModuleID: "compras", Read: true})}
	store := &MemoryStore{}
	m := NewManager(backend, store, Options{})
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Login(context.Background(), "ana@urbis.gov.br", "segredo123", identity.KindAdmin))

	assert.True(t, m.HasPermission("compras", identity.ActionRead))
	assert.False(t, m.HasPermission("compras", identity.ActionDelete))
	assert.False(t, m.HasPermission("rh", identity.ActionRead))
	saved, _ := store.Load()
	require.NotNil(t, saved.Session)
	assert.Equal(t, "a", saved.Session.AccessToken)
}

func TestLoginFailureToastsWithoutRetry(t *testing.T) {
	backend := &fakeBackend{signInErr: apperr.New(apperr.Network, "UNAVAILABLE", "fora do ar")}
	toast := &recordingToast{}
	m := NewManager(backend, &MemoryStore{}, Options{Toast: toast})

	err := m.Login(context.Background(), "a@b.com", "x", identity.KindCitizen)
	require.Error(t, err)
	assert.Equal(t, 1, backend.signIns)
	require.Len(t, toast.msgs, 1)
	assert.Equal(t, "Erro ao fazer login", toast.msgs[0].Text)
	assert.Nil(t, m.User())
}

func TestRegisterUsesReturnedProfile(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, &MemoryStore{}, Options{})

	require.NoError(t, m.Register(context.Background(), RegisterData{Nome: "Carla"}, identity.KindCitizen))
	assert.Equal(t, "Carla", m.User().Nome())
	assert.Empty(t, backend.fetched)
	assert.False(t, m.HasPermission("compras", identity.ActionRead))
}

func TestLogoutClearsState(t *testing.T) {
	backend := &fakeBackend{session: &Session{AccessToken: "a"}, admin: adminUser()}
	store := &MemoryStore{}
	m := NewManager(backend, store, Options{})
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Logout(context.Background()))
	assert.Nil(t, m.User())
	assert.Equal(t, 1, backend.signOuts)
	saved, _ := store.Load()
	assert.Nil(t, saved.Session)
	assert.Nil(t, saved.User)
	assert.True(t, saved.Initialized)
}

func TestLogoutKeepsInitializedMarkerOnDisk(t *testing.T) {
	backend := &fakeBackend{session: &Session{AccessToken: "a"}, admin: adminUser()}
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	m := NewManager(backend, fs, Options{})
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Logout(context.Background()))

	saved, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, State{Initialized: true}, saved)
}

func TestTokenRefreshedUpdatesSession(t *testing.T) {
	backend := &fakeBackend{session: &Session{AccessToken: "old"}, admin: adminUser()}
	store := &MemoryStore{}
	m := NewManager(backend, store, Options{})
	require.NoError(t, m.Start(context.Background()))

	backend.emit(EventTokenRefreshed, &Session{AccessToken: "new"})
	assert.Equal(t, "new", m.Session().AccessToken)
	saved, _ := store.Load()
	assert.Equal(t, "new", saved.Session.AccessToken)
	assert.NotNil(t, saved.User)

	m.Close()
	backend.emit(EventSignedOut, nil)
	assert.NotNil(t, m.User())
}

func TestUpdatePasswordNeedsSession(t *testing.T) {
	m := NewManager(&fakeBackend{}, &MemoryStore{}, Options{})
	err := m.UpdatePassword(context.Background(), "nova-senha-123")
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStore(path)

	st, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, st.Initialized)

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := State{Initialized: true, Session: &Session{AccessToken: "a", RefreshToken: "r", Kind: identity.KindCitizen, ExpiresAt: exp}}
	require.NoError(t, fs.Save(want))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Session.RefreshToken, got.Session.RefreshToken)
	assert.True(t, got.Session.ExpiresAt.Equal(exp))

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	got, err = fs.Load()
	require.NoError(t, err)
	assert.Nil(t, got.Session)
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.False(t, (&Session{}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now.Add(5 * time.Second)}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
}
