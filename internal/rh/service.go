package rh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/cache"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/util"
	"github.com/digiurbis/portal/internal/workflow"
)

const cachePrefix = "rh:"

type store interface {
	List(ctx context.Context, f Filter) ([]Solicitacao, error)
	Get(ctx context.Context, id uuid.UUID) (Solicitacao, error)
	Create(ctx context.Context, values backend.Values) (Solicitacao, error)
	SetStatus(ctx context.Context, change workflow.Change[Status]) (Solicitacao, error)
	History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type Service struct {
	store  store
	cache  *cache.Cache
	policy request.Policy
}

func NewService(s store, c *cache.Cache, policy request.Policy) *Service {
	return &Service{store: s, cache: c, policy: policy}
}

func call[T any](ctx context.Context, s *Service, label, message string, fn func(context.Context) (T, error)) (T, error) {
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "rh." + label, ErrorMessage: message})).Unwrap()
}

func (s *Service) ListSolicitacoes(ctx context.Context, f Filter) ([]Solicitacao, error) {
	key := fmt.Sprintf("%slist:%s|%s|%s|%d|%d", cachePrefix, f.Status, f.Tipo, f.ServidorID, f.Limit, f.Offset)
	return call(ctx, s, "list", "Erro ao carregar solicitações de RH", func(ctx context.Context) ([]Solicitacao, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierDefault, func(ctx context.Context) ([]Solicitacao, error) {
			return s.store.List(ctx, f)
		})
	})
}

func (s *Service) GetSolicitacao(ctx context.Context, id uuid.UUID) (Solicitacao, error) {
	return call(ctx, s, "get", "", func(ctx context.Context) (Solicitacao, error) {
		return s.store.Get(ctx, id)
	})
}

// CreateSolicitacao registra o pedido do servidor. Férias, licença e afastamento exigem período.
func (s *Service) CreateSolicitacao(ctx context.Context, servidorID uuid.UUID, in Input) (Solicitacao, error) {
	tipo := strings.ToLower(strings.TrimSpace(in.Tipo))
	needsPeriod, known := tipos[tipo]
	if !known {
		return Solicitacao{}, apperr.Invalid("tipo inválido: %s", in.Tipo)
	}
	if servidorID == uuid.Nil {
		return Solicitacao{}, apperr.Invalid("servidor obrigatório")
	}
	if err := util.MinLength(in.Descricao, "descrição", 5); err != nil {
		return Solicitacao{}, apperr.Invalid("%s", err.Error())
	}

	inicio, err := parseDate(in.DataInicio, "data de início")
	if err != nil {
		return Solicitacao{}, err
	}
	fim, err := parseDate(in.DataFim, "data de fim")
	if err != nil {
		return Solicitacao{}, err
	}
	if needsPeriod && (inicio == nil || fim == nil) {
		return Solicitacao{}, apperr.Invalid("informe o período da solicitação")
	}
	if inicio != nil && fim != nil && fim.Before(*inicio) {
		return Solicitacao{}, apperr.Invalid("data de fim anterior à data de início")
	}

	created, err := call(ctx, s, "create", "Erro ao registrar solicitação de RH", func(ctx context.Context) (Solicitacao, error) {
		return s.store.Create(ctx, backend.Values{
			"servidor_id": servidorID,
			"tipo":        tipo,
			"descricao":   strings.TrimSpace(in.Descricao),
			"data_inicio": inicio,
			"data_fim":    fim,
		})
	})
	if err != nil {
		return Solicitacao{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return created, nil
}

// UpdateStatus aprova, rejeita ou cancela. O comentário vira parecer nas decisões.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comentario string, actor *uuid.UUID) (Solicitacao, error) {
	if !Machine.Valid(status) {
		return Solicitacao{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	comentario = strings.TrimSpace(comentario)
	if status == StatusRejected && comentario == "" {
		return Solicitacao{}, apperr.Invalid("informe o motivo da rejeição")
	}
	change := workflow.Change[Status]{ID: id, To: status, Comment: comentario, Actor: actor, CompletedColumn: "concluido_em"}
	if status == StatusApproved || status == StatusRejected {
		change.Extra = backend.Values{"parecer": comentario}
	}
	updated, err := call(ctx, s, "status", "", func(ctx context.Context) (Solicitacao, error) {
		return s.store.SetStatus(ctx, change)
	})
	if err != nil {
		return Solicitacao{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return updated, nil
}

// Cancelar o próprio servidor desiste do pedido.
func (s *Service) Cancelar(ctx context.Context, servidorID, id uuid.UUID) (Solicitacao, error) {
	current, err := s.GetSolicitacao(ctx, id)
	if err != nil {
		return Solicitacao{}, err
	}
	if current.ServidorID != servidorID {
		return Solicitacao{}, apperr.ErrNotFound
	}
	return s.UpdateStatus(ctx, id, StatusCancelled, "cancelada pelo servidor", &servidorID)
}

func (s *Service) Historico(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return call(ctx, s, "history", "", func(ctx context.Context) ([]workflow.Entry, error) {
		return s.store.History(ctx, id)
	})
}

func (s *Service) ContarPorStatus(ctx context.Context) (map[string]int64, error) {
	return call(ctx, s, "count", "", s.store.CountByStatus)
}

func parseDate(value, field string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, apperr.Invalid("%s inválida", field)
	}
	return &t, nil
}
