package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/request"
)

// LoginPath destino do redirecionamento quando a sessão é descartada.
const LoginPath = "/login"

// Options ganchos opcionais do Manager.
type Options struct {
	// Toast recebe os avisos exibidos ao usuário. Nil descarta.
	Toast notify.Notifier
	// Redirect chamado com LoginPath ao encerrar a sessão por falta de perfil.
	Redirect func(path string)
	Logger   *zerolog.Logger
}

// Manager estado de autenticação do processo. Seguro para uso concorrente.
type Manager struct {
	backend  Backend
	store    StateStore
	toast    notify.Notifier
	redirect func(string)
	logger   zerolog.Logger

	mu          sync.RWMutex
	started     bool
	loading     bool
	user        *identity.User
	session     *Session
	unsubscribe func()
}

func NewManager(backend Backend, store StateStore, opts Options) *Manager {
	m := &Manager{
		backend:  backend,
		store:    store,
		toast:    opts.Toast,
		redirect: opts.Redirect,
		logger:   log.With().Str("component", "session").Logger(),
	}
	if opts.Logger != nil {
		m.logger = *opts.Logger
	}
	if m.toast == nil {
		m.toast = notify.Discard{}
	}
	return m
}

// Start inicializa uma única vez por processo: registra o listener, marca a
// inicialização no armazenamento local e recupera a sessão existente.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.loading = true
	m.unsubscribe = m.backend.OnAuthStateChange(m.onAuthStateChange)
	m.mu.Unlock()

	defer m.setLoading(false)

	st, err := m.store.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("estado local ilegível, descartando")
		st = State{}
	}
	st.Initialized = true
	if err := m.store.Save(st); err != nil {
		return err
	}

	current, err := m.backend.GetSession(ctx, st.Session)
	if err != nil {
		m.logger.Warn().Err(err).Msg("sessão anterior inválida")
		current = nil
	}
	if current == nil {
		return m.store.Save(State{Initialized: true})
	}
	return m.establish(ctx, current)
}

// Close remove o listener.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// State cópia do estado atual.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{Initialized: m.started, Session: m.session, User: m.user}
}

func (m *Manager) User() *identity.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// HasPermission regra de permissão aplicada ao usuário atual.
func (m *Manager) HasPermission(moduleID string, action identity.Action) bool {
	return identity.HasPermission(m.User(), moduleID, action)
}

// Login uma chamada, sem retry; a falha vira aviso.
func (m *Manager) Login(ctx context.Context, email, password string, kind identity.Kind) error {
	type signed struct {
		session *Session
		user    *identity.User
	}
	res, err := request.Do(ctx, func(ctx context.Context) (signed, error) {
		s, u, err := m.backend.SignIn(ctx, email, password, kind)
		return signed{s, u}, err
	}, m.once("auth.login", "Erro ao fazer login")).Unwrap()
	if err != nil {
		return err
	}
	if res.user != nil && res.user.Valid() {
		return m.commit(res.session, res.user)
	}
	return m.establish(ctx, res.session)
}

// Register cadastra e já entra com a sessão devolvida.
func (m *Manager) Register(ctx context.Context, data RegisterData, kind identity.Kind) error {
	type signed struct {
		session *Session
		user    *identity.User
	}
	res, err := request.Do(ctx, func(ctx context.Context) (signed, error) {
		s, u, err := m.backend.SignUp(ctx, data, kind)
		return signed{s, u}, err
	}, m.once("auth.register", "Erro ao cadastrar")).Unwrap()
	if err != nil {
		return err
	}
	if res.user != nil && res.user.Valid() {
		return m.commit(res.session, res.user)
	}
	return m.establish(ctx, res.session)
}

// Logout encerra no backend e limpa o estado local mesmo se a chamada falhar.
func (m *Manager) Logout(ctx context.Context) error {
	current := m.Session()
	res := request.Exec(ctx, func(ctx context.Context) error {
		return m.backend.SignOut(ctx, current)
	}, m.once("auth.logout", "Erro ao sair"))
	m.clearLocal()
	if res.Err != nil {
		return res.Err
	}
	return nil
}

func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	res := request.Exec(ctx, func(ctx context.Context) error {
		return m.backend.ResetPassword(ctx, email)
	}, m.once("auth.reset", "Erro ao enviar e-mail de redefinição"))
	if res.Err != nil {
		return res.Err
	}
	_ = m.toast.Notify(ctx, notify.Message{Title: "Redefinição de senha", Text: "Verifique seu e-mail", Level: notify.LevelSuccess})
	return nil
}

func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	current := m.Session()
	if current == nil {
		return ErrNoSession
	}
	res := request.Exec(ctx, func(ctx context.Context) error {
		return m.backend.UpdatePassword(ctx, current, newPassword)
	}, m.once("auth.update_password", "Erro ao atualizar senha"))
	if res.Err != nil {
		return res.Err
	}
	_ = m.toast.Notify(ctx, notify.Message{Title: "Senha", Text: "Senha atualizada", Level: notify.LevelSuccess})
	return nil
}

func (m *Manager) once(label, message string) request.Options {
	return request.Options{Context: label, ErrorMessage: message, Retries: request.NoRetry, Notifier: m.toast}
}

// establish resolve o perfil (servidor, depois cidadão). Qualquer falha encerra a sessão.
func (m *Manager) establish(ctx context.Context, s *Session) error {
	user, err := m.resolveProfile(ctx, s)
	if err == nil && user == nil {
		err = ErrProfileNotFound
	}
	if err != nil {
		m.forceLogout(ctx, s, err)
		return err
	}
	return m.commit(s, user)
}

func (m *Manager) resolveProfile(ctx context.Context, s *Session) (*identity.User, error) {
	user, err := m.backend.FetchProfile(ctx, s, identity.KindAdmin)
	if err != nil || user != nil {
		return user, err
	}
	return m.backend.FetchProfile(ctx, s, identity.KindCitizen)
}

// forceLogout limpa o estado local, encerra no backend uma única vez e manda para o login.
func (m *Manager) forceLogout(ctx context.Context, s *Session, cause error) {
	m.logger.Warn().Err(cause).Msg("sessão sem perfil válido: encerrando")
	m.clearLocal()
	if err := m.backend.SignOut(ctx, s); err != nil {
		m.logger.Error().Err(err).Msg("falha ao encerrar sessão no backend")
	}
	if m.redirect != nil {
		m.redirect(LoginPath)
	}
	text := "Perfil não encontrado. Faça login novamente."
	if !errors.Is(cause, ErrProfileNotFound) {
		text = "Não foi possível carregar seu perfil. Faça login novamente."
	}
	_ = m.toast.Notify(ctx, notify.Message{Title: "Sessão encerrada", Text: text, Level: notify.LevelError})
}

func (m *Manager) commit(s *Session, u *identity.User) error {
	m.mu.Lock()
	m.session = s
	m.user = u
	m.mu.Unlock()
	return m.store.Save(State{Initialized: true, Session: s, User: u})
}

func (m *Manager) clearLocal() {
	m.mu.Lock()
	m.session = nil
	m.user = nil
	m.mu.Unlock()
	// a marca de inicialização sobrevive ao logout
	if err := m.store.Save(State{Initialized: true}); err != nil {
		m.logger.Warn().Err(err).Msg("falha ao limpar estado local")
	}
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

// onAuthStateChange SIGNED_IN é tratado por Login/Register, que já resolvem o perfil.
func (m *Manager) onAuthStateChange(evt Event, s *Session) {
	switch evt {
	case EventSignedOut:
		m.clearLocal()
	case EventTokenRefreshed:
		m.mu.Lock()
		if m.session == nil {
			m.mu.Unlock()
			return
		}
		m.session = s
		user := m.user
		m.mu.Unlock()
		if err := m.store.Save(State{Initialized: true, Session: s, User: user}); err != nil {
			m.logger.Warn().Err(err).Msg("falha ao salvar sessão renovada")
		}
	}
}
