package compras

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/cache"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/util"
	"github.com/digiurbis/portal/internal/workflow"
)

const cachePrefix = "compras:"

type store interface {
	List(ctx context.Context, f Filter) ([]Solicitacao, error)
	Get(ctx context.Context, id uuid.UUID) (Solicitacao, error)
	Create(ctx context.Context, in NovaSolicitacao) (Solicitacao, error)
	Update(ctx context.Context, id uuid.UUID, values backend.Values) (Solicitacao, error)
	SetStatus(ctx context.Context, change workflow.Change[Status]) (Solicitacao, error)
	History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Service regras do módulo de compras.
type Service struct {
	store  store
	anexos attachment.Manager
	cache  *cache.Cache
	policy request.Policy
}

func NewService(s store, anexos attachment.Manager, c *cache.Cache, policy request.Policy) *Service {
	return &Service{store: s, anexos: anexos, cache: c, policy: policy}
}

func call[T any](ctx context.Context, s *Service, label, message string, fn func(context.Context) (T, error)) (T, error) {
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "compras." + label, ErrorMessage: message})).Unwrap()
}

// ListSolicitacoes lista com cache curto por filtro.
func (s *Service) ListSolicitacoes(ctx context.Context, f Filter) ([]Solicitacao, error) {
	key := fmt.Sprintf("%slist:%s|%s|%s|%s|%s|%d|%d", cachePrefix, f.Status, f.Departamento, f.Prioridade, f.SolicitanteID, f.Busca, f.Limit, f.Offset)
	return call(ctx, s, "list", "Erro ao carregar solicitações de compra", func(ctx context.Context) ([]Solicitacao, error) {
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

// CreateSolicitacao valida e grava em status pending com protocolo novo.
func (s *Service) CreateSolicitacao(ctx context.Context, userID uuid.UUID, departamento, justificativa, prioridade string, itens []ItemInput) (Solicitacao, error) {
	in := NovaSolicitacao{
		SolicitanteID: userID,
		Departamento:  strings.TrimSpace(departamento),
		Justificativa: strings.TrimSpace(justificativa),
		Prioridade:    strings.ToLower(strings.TrimSpace(prioridade)),
	}
	if in.Prioridade == "" {
		in.Prioridade = PrioridadeNormal
	}
	if userID == uuid.Nil {
		return Solicitacao{}, apperr.Invalid("solicitante obrigatório")
	}
	if err := util.RequireString(in.Departamento, "departamento"); err != nil {
		return Solicitacao{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.MinLength(in.Justificativa, "justificativa", 10); err != nil {
		return Solicitacao{}, apperr.Invalid("%s", err.Error())
	}
	if !validPrioridade(in.Prioridade) {
		return Solicitacao{}, apperr.Invalid("prioridade inválida: %s", prioridade)
	}
	if len(itens) == 0 {
		return Solicitacao{}, apperr.Invalid("informe ao menos um item")
	}
	for i, it := range itens {
		it.Descricao = strings.TrimSpace(it.Descricao)
		it.Unidade = strings.TrimSpace(it.Unidade)
		if it.Descricao == "" {
			return Solicitacao{}, apperr.Invalid("item %d: descrição obrigatória", i+1)
		}
		if it.Quantidade <= 0 {
			return Solicitacao{}, apperr.Invalid("item %d: quantidade deve ser maior que zero", i+1)
		}
		if it.ValorUnitario < 0 {
			return Solicitacao{}, apperr.Invalid("item %d: valor unitário negativo", i+1)
		}
		if it.Unidade == "" {
			it.Unidade = "unidade"
		}
		in.Itens = append(in.Itens, it)
	}

	created, err := call(ctx, s, "create", "Erro ao criar solicitação de compra", func(ctx context.Context) (Solicitacao, error) {
		return s.store.Create(ctx, in)
	})
	if err != nil {
		return Solicitacao{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return created, nil
}

// UpdateSolicitacao altera campos descritivos; solicitações encerradas não mudam.
func (s *Service) UpdateSolicitacao(ctx context.Context, id uuid.UUID, p Patch) (Solicitacao, error) {
	values := backend.Values{}
	if p.Departamento != nil {
		v := strings.TrimSpace(*p.Departamento)
		if v == "" {
			return Solicitacao{}, apperr.Invalid("departamento obrigatório")
		}
		values["departamento"] = v
	}
	if p.Justificativa != nil {
		if err := util.MinLength(*p.Justificativa, "justificativa", 10); err != nil {
			return Solicitacao{}, apperr.Invalid("%s", err.Error())
		}
		values["justificativa"] = strings.TrimSpace(*p.Justificativa)
	}
	if p.Prioridade != nil {
		v := strings.ToLower(strings.TrimSpace(*p.Prioridade))
		if !validPrioridade(v) {
			return Solicitacao{}, apperr.Invalid("prioridade inválida: %s", *p.Prioridade)
		}
		values["prioridade"] = v
	}
	if p.Observacoes != nil {
		values["observacoes"] = strings.TrimSpace(*p.Observacoes)
	}

	current, err := s.GetSolicitacao(ctx, id)
	if err != nil {
		return Solicitacao{}, err
	}
	if Machine.IsTerminal(current.Status) {
		return Solicitacao{}, apperr.Invalid("solicitação encerrada não pode ser alterada")
	}

	updated, err := call(ctx, s, "update", "Erro ao atualizar solicitação de compra", func(ctx context.Context) (Solicitacao, error) {
		return s.store.Update(ctx, id, values)
	})
	if err != nil {
		return Solicitacao{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return updated, nil
}

// UpdateStatus aplica a mudança validada pela máquina de estados.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comentario string, actor *uuid.UUID) (Solicitacao, error) {
	if !Machine.Valid(status) {
		return Solicitacao{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	updated, err := call(ctx, s, "status", "", func(ctx context.Context) (Solicitacao, error) {
		return s.store.SetStatus(ctx, workflow.Change[Status]{
			ID:              id,
			To:              status,
			Comment:         strings.TrimSpace(comentario),
			Actor:           actor,
			CompletedColumn: "concluido_em",
		})
	})
	if err != nil {
		return Solicitacao{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return updated, nil
}

// Historico mudanças de status.
func (s *Service) Historico(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return call(ctx, s, "history", "", func(ctx context.Context) ([]workflow.Entry, error) {
		return s.store.History(ctx, id)
	})
}

// ContarPorStatus usado pelo painel do gabinete.
func (s *Service) ContarPorStatus(ctx context.Context) (map[string]int64, error) {
	return call(ctx, s, "count", "", s.store.CountByStatus)
}

func (s *Service) UploadAnexo(ctx context.Context, id uuid.UUID, file attachment.File, uploader *uuid.UUID) (attachment.Anexo, error) {
	if s.anexos == nil {
		return attachment.Anexo{}, apperr.New(apperr.Unexpected, "INTERNAL", "anexos indisponíveis")
	}
	if _, err := s.GetSolicitacao(ctx, id); err != nil {
		return attachment.Anexo{}, err
	}
	return call(ctx, s, "anexo.upload", "Erro ao enviar anexo", func(ctx context.Context) (attachment.Anexo, error) {
		return s.anexos.Upload(ctx, Entity, id, file, uploader)
	})
}

func (s *Service) ListAnexos(ctx context.Context, id uuid.UUID) ([]attachment.Anexo, error) {
	if s.anexos == nil {
		return nil, nil
	}
	return call(ctx, s, "anexo.list", "", func(ctx context.Context) ([]attachment.Anexo, error) {
		return s.anexos.List(ctx, Entity, id)
	})
}

// DeleteAnexo remove anexo que pertença à solicitação.
func (s *Service) DeleteAnexo(ctx context.Context, id, anexoID uuid.UUID) error {
	if s.anexos == nil {
		return apperr.New(apperr.Unexpected, "INTERNAL", "anexos indisponíveis")
	}
	_, err := call(ctx, s, "anexo.delete", "Erro ao remover anexo", func(ctx context.Context) (struct{}, error) {
		a, err := s.anexos.Get(ctx, anexoID)
		if err != nil {
			return struct{}{}, err
		}
		if a.Entidade != Entity || a.EntidadeID != id {
			return struct{}{}, apperr.ErrNotFound
		}
		return struct{}{}, s.anexos.Delete(ctx, anexoID)
	})
	return err
}
