package documentos

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

const cachePrefix = "documentos:"

type store interface {
	List(ctx context.Context, f Filter) ([]Documento, error)
	Get(ctx context.Context, id uuid.UUID) (Documento, error)
	Create(ctx context.Context, values backend.Values, autor *uuid.UUID) (Documento, error)
	Encaminhar(ctx context.Context, e Encaminhamento) (Documento, error)
	SetStatus(ctx context.Context, change workflow.Change[Status]) (Documento, error)
	Tramitacoes(ctx context.Context, id uuid.UUID) ([]Tramitacao, error)
	History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type Service struct {
	store  store
	anexos attachment.Manager
	cache  *cache.Cache
	policy request.Policy
}

// NewService anexos deve apontar para o bucket de documentos.
func NewService(s store, anexos attachment.Manager, c *cache.Cache, policy request.Policy) *Service {
	return &Service{store: s, anexos: anexos, cache: c, policy: policy}
}

func call[T any](ctx context.Context, s *Service, label, message string, fn func(context.Context) (T, error)) (T, error) {
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "documentos." + label, ErrorMessage: message})).Unwrap()
}

func normalizeSetor(v string) string {
	return strings.ToLower(strings.TrimSpace(util.FoldAccents(v)))
}

func (s *Service) ListDocumentos(ctx context.Context, f Filter) ([]Documento, error) {
	f.Setor = normalizeSetor(f.Setor)
	key := fmt.Sprintf("%slist:%s|%s|%s|%s|%d|%d", cachePrefix, f.Status, f.Tipo, f.Setor, f.Busca, f.Limit, f.Offset)
	return call(ctx, s, "list", "Erro ao carregar documentos", func(ctx context.Context) ([]Documento, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierDefault, func(ctx context.Context) ([]Documento, error) {
			return s.store.List(ctx, f)
		})
	})
}

func (s *Service) GetDocumento(ctx context.Context, id uuid.UUID) (Documento, error) {
	return call(ctx, s, "get", "", func(ctx context.Context) (Documento, error) {
		return s.store.Get(ctx, id)
	})
}

// Protocolar registra a entrada do documento no setor de protocolo.
func (s *Service) Protocolar(ctx context.Context, in Input, actor *uuid.UUID) (Documento, error) {
	tipo := strings.ToLower(strings.TrimSpace(in.Tipo))
	valid := false
	for _, t := range Tipos {
		if t == tipo {
			valid = true
			break
		}
	}
	if !valid {
		return Documento{}, apperr.Invalid("tipo de documento inválido: %s", in.Tipo)
	}
	if err := util.MinLength(in.Assunto, "assunto", 5); err != nil {
		return Documento{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.RequireString(in.Remetente, "remetente"); err != nil {
		return Documento{}, apperr.Invalid("%s", err.Error())
	}
	created, err := call(ctx, s, "create", "Erro ao protocolar documento", func(ctx context.Context) (Documento, error) {
		return s.store.Create(ctx, backend.Values{
			"tipo":        tipo,
			"assunto":     strings.TrimSpace(in.Assunto),
			"remetente":   strings.TrimSpace(in.Remetente),
			"interessado": strings.TrimSpace(in.Interessado),
			"descricao":   strings.TrimSpace(in.Descricao),
			"setor_atual": SetorInicial,
		}, actor)
	})
	if err != nil {
		return Documento{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return created, nil
}

// Encaminhar envia o documento para outro setor com despacho.
func (s *Service) Encaminhar(ctx context.Context, id uuid.UUID, destino, despacho string, actor *uuid.UUID) (Documento, error) {
	destino = normalizeSetor(destino)
	despacho = strings.TrimSpace(despacho)
	if destino == "" {
		return Documento{}, apperr.Invalid("setor de destino obrigatório")
	}
	if despacho == "" {
		return Documento{}, apperr.Invalid("despacho obrigatório")
	}
	doc, err := s.GetDocumento(ctx, id)
	if err != nil {
		return Documento{}, err
	}
	if doc.SetorAtual == destino {
		return Documento{}, apperr.Invalid("documento já está no setor %s", destino)
	}
	if err := Machine.Check(doc.Status, StatusForwarded); err != nil {
		return Documento{}, err
	}
	updated, err := call(ctx, s, "forward", "Erro ao encaminhar documento", func(ctx context.Context) (Documento, error) {
		return s.store.Encaminhar(ctx, Encaminhamento{
			DocumentoID: id,
			Origem:      doc.SetorAtual,
			Destino:     destino,
			Despacho:    despacho,
			Autor:       actor,
		})
	})
	if err != nil {
		return Documento{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return updated, nil
}

// UpdateStatus demais mudanças. Encaminhamento exige destino e passa por Encaminhar.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comentario string, actor *uuid.UUID) (Documento, error) {
	if !Machine.Valid(status) {
		return Documento{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	if status == StatusForwarded {
		return Documento{}, apperr.Invalid("use o encaminhamento para mudar de setor")
	}
	updated, err := call(ctx, s, "status", "", func(ctx context.Context) (Documento, error) {
		return s.store.SetStatus(ctx, workflow.Change[Status]{
			ID: id, To: status, Comment: strings.TrimSpace(comentario), Actor: actor, CompletedColumn: "concluido_em",
		})
	})
	if err != nil {
		return Documento{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
	return updated, nil
}

func (s *Service) Tramitacoes(ctx context.Context, id uuid.UUID) ([]Tramitacao, error) {
	return call(ctx, s, "tramitacoes", "", func(ctx context.Context) ([]Tramitacao, error) {
		return s.store.Tramitacoes(ctx, id)
	})
}

func (s *Service) Historico(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return call(ctx, s, "history", "", func(ctx context.Context) ([]workflow.Entry, error) {
		return s.store.History(ctx, id)
	})
}

func (s *Service) ContarPorStatus(ctx context.Context) (map[string]int64, error) {
	return call(ctx, s, "count", "", s.store.CountByStatus)
}

func (s *Service) UploadAnexo(ctx context.Context, id uuid.UUID, file attachment.File, uploader *uuid.UUID) (attachment.Anexo, error) {
	if s.anexos == nil {
		return attachment.Anexo{}, apperr.New(apperr.Unexpected, "INTERNAL", "anexos indisponíveis")
	}
	if _, err := s.GetDocumento(ctx, id); err != nil {
		return attachment.Anexo{}, err
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
