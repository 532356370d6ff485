// Package session mantém, do lado do cliente, quem está autenticado no processo:
// sessão (tokens) e perfil resolvido, persistidos entre execuções da CLI.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/identity"
)

var (
	// ErrProfileNotFound sessão válida sem perfil de servidor nem de cidadão.
	ErrProfileNotFound = apperr.New(apperr.Authentication, "PROFILE_NOT_FOUND", "perfil não encontrado")
	ErrNoSession       = apperr.New(apperr.Authentication, "AUTH", "nenhuma sessão ativa")
)

// Event mudança de estado de autenticação emitida pelo backend.
type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Session tokens emitidos pelo backend.
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	Kind         identity.Kind `json:"kind"`
	Subject      uuid.UUID     `json:"subject"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// Expired indica access token vencido (com folga de alguns segundos).
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.Add(10*time.Second).After(s.ExpiresAt)
}

// RegisterData cadastro pelo cliente. Campos de servidor valem só para KindAdmin.
type RegisterData struct {
	Nome         string                `json:"nome"`
	Email        string                `json:"email"`
	Senha        string                `json:"senha"`
	CPF          string                `json:"cpf,omitempty"`
	Telefone     string                `json:"telefone,omitempty"`
	Endereco     identity.Endereco     `json:"endereco"`
	Role         string                `json:"role,omitempty"`
	Departamento string                `json:"departamento,omitempty"`
	Cargo        string                `json:"cargo,omitempty"`
	Permissions  []identity.Permission `json:"permissions,omitempty"`
}

// Backend API de autenticação vista pelo cliente.
type Backend interface {
	// GetSession valida a sessão guardada, renovando se preciso. Sem sessão devolve nil, nil.
	GetSession(ctx context.Context, stored *Session) (*Session, error)
	// FetchProfile devolve o perfil do tipo pedido; nil, nil quando não existe.
	FetchProfile(ctx context.Context, s *Session, kind identity.Kind) (*identity.User, error)
	SignIn(ctx context.Context, email, password string, kind identity.Kind) (*Session, *identity.User, error)
	SignUp(ctx context.Context, data RegisterData, kind identity.Kind) (*Session, *identity.User, error)
	SignOut(ctx context.Context, s *Session) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, s *Session, newPassword string) error
	// OnAuthStateChange registra listener; devolve função para remover.
	OnAuthStateChange(fn func(evt Event, s *Session)) func()
}

// State estado local persistido.
type State struct {
	Initialized bool           `json:"initialized"`
	Session     *Session       `json:"session,omitempty"`
	User        *identity.User `json:"user,omitempty"`
}

// StateStore armazenamento local do estado (o "localStorage" da CLI).
type StateStore interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}
