package saude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/cache"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/util"
	"github.com/digiurbis/portal/internal/workflow"
)

const cachePrefix = "saude:"

// antecedenciaMinima prazo mínimo entre o pedido e a consulta.
const antecedenciaMinima = 48 * time.Hour

type store interface {
	List(ctx context.Context, f Filter) ([]SolicitacaoTransporte, error)
	Get(ctx context.Context, id uuid.UUID) (SolicitacaoTransporte, error)
	Create(ctx context.Context, values backend.Values) (SolicitacaoTransporte, error)
	SetStatus(ctx context.Context, change workflow.Change[Status]) (SolicitacaoTransporte, error)
	History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type Service struct {
	store  store
	anexos attachment.Manager
	cache  *cache.Cache
	policy request.Policy
	now    func() time.Time
}

func NewService(s store, anexos attachment.Manager, c *cache.Cache, policy request.Policy) *Service {
	return &Service{store: s, anexos: anexos, cache: c, policy: policy, now: util.Now}
}

func call[T any](ctx context.Context, s *Service, label, message string, fn func(context.Context) (T, error)) (T, error) {
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "saude." + label, ErrorMessage: message})).Unwrap()
}

func (s *Service) ListSolicitacoes(ctx context.Context, f Filter) ([]SolicitacaoTransporte, error) {
	key := fmt.Sprintf("%slist:%s|%s|%s|%d|%d|%d|%d", cachePrefix, f.Status, f.CidadaoID, f.Destino, f.De.Unix(), f.Ate.Unix(), f.Limit, f.Offset)
	return call(ctx, s, "list", "Erro ao carregar solicitações de transporte", func(ctx context.Context) ([]SolicitacaoTransporte, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierDefault, func(ctx context.Context) ([]SolicitacaoTransporte, error) {
			return s.store.List(ctx, f)
		})
	})
}

func (s *Service) GetSolicitacao(ctx context.Context, id uuid.UUID) (SolicitacaoTransporte, error) {
	return call(ctx, s, "get", "", func(ctx context.Context) (SolicitacaoTransporte, error) {
		return s.store.Get(ctx, id)
	})
}

// GetDoCidadao pedidos de outro cidadão aparecem como inexistentes.
func (s *Service) GetDoCidadao(ctx context.Context, cidadaoID, id uuid.UUID) (SolicitacaoTransporte, error) {
	item, err := s.GetSolicitacao(ctx, id)
	if err != nil {
		return SolicitacaoTransporte{}, err
	}
	if item.CidadaoID != cidadaoID {
		return SolicitacaoTransporte{}, apperr.ErrNotFound
	}
	return item, nil
}

// Solicitar registra o pedido; a consulta precisa ter antecedência mínima de 48h.
func (s *Service) Solicitar(ctx context.Context, cidadaoID uuid.UUID, in Input) (SolicitacaoTransporte, error) {
	if cidadaoID == uuid.Nil {
		return SolicitacaoTransporte{}, apperr.Invalid("cidadão obrigatório")
	}
	nome := strings.TrimSpace(in.PacienteNome)
	if err := util.MinLength(nome, "nome do paciente", 3); err != nil {
		return SolicitacaoTransporte{}, apperr.Invalid("%s", err.Error())
	}
	cpf := util.OnlyDigits(in.PacienteCPF)
	if cpf != "" {
		if err := util.ValidateCPF(cpf); err != nil {
			return SolicitacaoTransporte{}, apperr.Invalid("%s", err.Error())
		}
	}
	if err := util.RequireString(in.UnidadeSaude, "unidade de saúde"); err != nil {
		return SolicitacaoTransporte{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.RequireString(in.Destino, "destino"); err != nil {
		return SolicitacaoTransporte{}, apperr.Invalid("%s", err.Error())
	}
	if in.DataConsulta.IsZero() {
		return SolicitacaoTransporte{}, apperr.Invalid("data da consulta obrigatória")
	}
	if in.DataConsulta.Before(s.now().Add(antecedenciaMinima)) {
		return SolicitacaoTransporte{}, apperr.Invalid("transporte deve ser solicitado com pelo menos 48 horas de antecedência")
	}

	created, err := call(ctx, s, "create", "Erro ao solicitar transporte", func(ctx context.Context) (SolicitacaoTransporte, error) {
		return s.store.Create(ctx, backend.Values{
			"cidadao_id":    cidadaoID,
			"paciente_nome": nome,
			"paciente_cpf":  cpf,
			"unidade_saude": strings.TrimSpace(in.UnidadeSaude),
			"destino":       strings.TrimSpace(in.Destino),
			"data_consulta": in.DataConsulta.UTC(),
			"acompanhante":  in.Acompanhante,
			"motivo":        strings.TrimSpace(in.Motivo),
		})
	})
	if err != nil {
		return SolicitacaoTransporte{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return created, nil
}

// UpdateStatus o comentário vai para observações ao agendar ou rejeitar (horário de saída, motivo).
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comentario string, actor *uuid.UUID) (SolicitacaoTransporte, error) {
	if !Machine.Valid(status) {
		return SolicitacaoTransporte{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	comentario = strings.TrimSpace(comentario)
	change := workflow.Change[Status]{ID: id, To: status, Comment: comentario, Actor: actor, CompletedColumn: "concluido_em"}
	if status == StatusScheduled || status == StatusRejected {
		if comentario == "" {
			return SolicitacaoTransporte{}, apperr.Invalid("observação obrigatória")
		}
		change.Extra = backend.Values{"observacoes": comentario}
	}
	updated, err := call(ctx, s, "status", "", func(ctx context.Context) (SolicitacaoTransporte, error) {
		return s.store.SetStatus(ctx, change)
	})
	if err != nil {
		return SolicitacaoTransporte{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return updated, nil
}

// Cancelar pelo cidadão dono do pedido.
func (s *Service) Cancelar(ctx context.Context, cidadaoID, id uuid.UUID) (SolicitacaoTransporte, error) {
	item, err := s.GetDoCidadao(ctx, cidadaoID, id)
	if err != nil {
		return SolicitacaoTransporte{}, err
	}
	if !item.Cancelavel() {
		return SolicitacaoTransporte{}, apperr.Invalid("solicitação não pode mais ser cancelada")
	}
	return s.UpdateStatus(ctx, id, StatusCancelled, "cancelado pelo cidadão", &cidadaoID)
}

func (s *Service) Historico(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return call(ctx, s, "history", "", func(ctx context.Context) ([]workflow.Entry, error) {
		return s.store.History(ctx, id)
	})
}

func (s *Service) ContarPorStatus(ctx context.Context) (map[string]int64, error) {
	return call(ctx, s, "count", "", s.store.CountByStatus)
}

// UploadAnexo encaminhamento médico, comprovante de agendamento.
func (s *Service) UploadAnexo(ctx context.Context, id uuid.UUID, file attachment.File, uploader *uuid.UUID) (attachment.Anexo, error) {
	if s.anexos == nil {
		return attachment.Anexo{}, apperr.New(apperr.Unexpected, "INTERNAL", "anexos indisponíveis")
	}
	return call(ctx, s, "anexo.upload", "Erro ao enviar arquivo", func(ctx context.Context) (attachment.Anexo, error) {
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
