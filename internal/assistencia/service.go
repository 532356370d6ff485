package assistencia

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
	"github.com/digiurbis/portal/internal/workflow"
)

const cachePrefix = "assistencia:"

type store interface {
	List(ctx context.Context, f Filter) ([]Beneficio, error)
	Get(ctx context.Context, id uuid.UUID) (Beneficio, error)
	Create(ctx context.Context, values backend.Values) (Beneficio, error)
	SetStatus(ctx context.Context, change workflow.Change[Status]) (Beneficio, error)
	History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

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
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "assistencia." + label, ErrorMessage: message})).Unwrap()
}

func (s *Service) ListBeneficios(ctx context.Context, f Filter) ([]Beneficio, error) {
	key := fmt.Sprintf("%slist:%s|%s|%s|%d|%d", cachePrefix, f.Status, f.Tipo, f.CidadaoID, f.Limit, f.Offset)
	return call(ctx, s, "list", "Erro ao carregar benefícios", func(ctx context.Context) ([]Beneficio, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierDefault, func(ctx context.Context) ([]Beneficio, error) {
			return s.store.List(ctx, f)
		})
	})
}

func (s *Service) GetBeneficio(ctx context.Context, id uuid.UUID) (Beneficio, error) {
	return call(ctx, s, "get", "", func(ctx context.Context) (Beneficio, error) {
		return s.store.Get(ctx, id)
	})
}

// GetBeneficioDoCidadao só devolve pedidos do próprio cidadão.
func (s *Service) GetBeneficioDoCidadao(ctx context.Context, cidadaoID, id uuid.UUID) (Beneficio, error) {
	b, err := s.GetBeneficio(ctx, id)
	if err != nil {
		return Beneficio{}, err
	}
	if b.CidadaoID != cidadaoID {
		return Beneficio{}, apperr.ErrNotFound
	}
	return b, nil
}

// CreateBeneficio registra pedido do cidadão.
func (s *Service) CreateBeneficio(ctx context.Context, cidadaoID uuid.UUID, in Input) (Beneficio, error) {
	tipo := strings.ToLower(strings.TrimSpace(in.Tipo))
	if cidadaoID == uuid.Nil {
		return Beneficio{}, apperr.Invalid("cidadão obrigatório")
	}
	if !validTipo(tipo) {
		return Beneficio{}, apperr.Invalid("tipo de benefício inválido: %s", in.Tipo)
	}
	if in.RendaFamiliar < 0 {
		return Beneficio{}, apperr.Invalid("renda familiar não pode ser negativa")
	}
	if in.MembrosFamilia == 0 {
		in.MembrosFamilia = 1
	}
	if in.MembrosFamilia < 0 || in.MembrosFamilia > 30 {
		return Beneficio{}, apperr.Invalid("quantidade de membros da família inválida")
	}

	created, err := call(ctx, s, "create", "Erro ao solicitar benefício", func(ctx context.Context) (Beneficio, error) {
		return s.store.Create(ctx, backend.Values{
			"cidadao_id":      cidadaoID,
			"tipo":            tipo,
			"descricao":       strings.TrimSpace(in.Descricao),
			"renda_familiar":  in.RendaFamiliar,
			"membros_familia": in.MembrosFamilia,
		})
	})
	if err != nil {
		return Beneficio{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return created, nil
}

// UpdateStatus o comentário vira parecer ao aprovar ou rejeitar.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comentario string, actor *uuid.UUID) (Beneficio, error) {
	if !Machine.Valid(status) {
		return Beneficio{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	comentario = strings.TrimSpace(comentario)
	change := workflow.Change[Status]{ID: id, To: status, Comment: comentario, Actor: actor, CompletedColumn: "concluido_em"}
	if status == StatusApproved || status == StatusRejected {
		if comentario == "" {
			return Beneficio{}, apperr.Invalid("parecer obrigatório")
		}
		change.Extra = backend.Values{"parecer": comentario}
	}
	updated, err := call(ctx, s, "status", "", func(ctx context.Context) (Beneficio, error) {
		return s.store.SetStatus(ctx, change)
	})
	if err != nil {
		return Beneficio{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return updated, nil
}

func (s *Service) Historico(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return call(ctx, s, "history", "", func(ctx context.Context) ([]workflow.Entry, error) {
		return s.store.History(ctx, id)
	})
}

func (s *Service) ContarPorStatus(ctx context.Context) (map[string]int64, error) {
	return call(ctx, s, "count", "", s.store.CountByStatus)
}

// UploadAnexo documentos comprobatórios (renda, residência).
func (s *Service) UploadAnexo(ctx context.Context, id uuid.UUID, file attachment.File, uploader *uuid.UUID) (attachment.Anexo, error) {
	if s.anexos == nil {
		return attachment.Anexo{}, apperr.New(apperr.Unexpected, "INTERNAL", "anexos indisponíveis")
	}
	return call(ctx, s, "anexo.upload", "Erro ao enviar documento", func(ctx context.Context) (attachment.Anexo, error) {
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

func (s *Service) DeleteAnexo(ctx context.Context, id, anexoID uuid.UUID) error {
	if s.anexos == nil {
		return apperr.New(apperr.Unexpected, "INTERNAL", "anexos indisponíveis")
	}
	_, err := call(ctx, s, "anexo.delete", "Erro ao remover documento", func(ctx context.Context) (struct{}, error) {
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
