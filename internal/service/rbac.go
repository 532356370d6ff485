package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/identity"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = apperr.New(apperr.Authorization, "FORBIDDEN", "acesso negado")
)

// Módulos conhecidos do backoffice.
const (
	ModuleCompras     = "compras"
	ModuleRH          = "rh"
	ModuleAssistencia = "assistencia"
	ModuleEducacao    = "educacao"
	ModuleDocumentos  = "documentos"
	ModuleGabinete    = "gabinete"
	ModuleSaude       = "saude"
	ModuleUsuarios    = "usuarios"
)

type profileResolver interface {
	ResolveProfile(ctx context.Context, subject uuid.UUID) (*identity.User, error)
}

// RBACService resolve o perfil do subject e aplica a regra de permissão por módulo.
type RBACService struct {
	profiles profileResolver
}

// NewRBACService cria nova instância.
func NewRBACService(p profileResolver) *RBACService {
	return &RBACService{profiles: p}
}

// Authorize devolve o perfil quando a ação é permitida.
func (s *RBACService) Authorize(ctx context.Context, subject uuid.UUID, moduleID string, action identity.Action) (*identity.User, error) {
	user, err := s.profiles.ResolveProfile(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !identity.HasPermission(user, moduleID, action) {
		return user, ErrForbidden
	}
	return user, nil
}
