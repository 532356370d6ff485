package gabinete

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/cache"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/util"
	"github.com/digiurbis/portal/internal/workflow"
)

const (
	cachePrefix  = "gabinete:"
	dashboardKey = cachePrefix + "dashboard"
)

// errPartial painel montado com módulos faltando; devolvido sem ir para o cache.
var errPartial = errors.New("gabinete: painel parcial")

type store interface {
	List(ctx context.Context, f Filter) ([]SolicitacaoDireta, error)
	Get(ctx context.Context, id uuid.UUID) (SolicitacaoDireta, error)
	Create(ctx context.Context, values backend.Values) (SolicitacaoDireta, error)
	SetStatus(ctx context.Context, change workflow.Change[Status]) (SolicitacaoDireta, error)
	History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)

	ListAgenda(ctx context.Context, f AgendaFilter) ([]Agendamento, error)
	CreateAgendamento(ctx context.Context, values backend.Values) (Agendamento, error)
	SetAgendamentoStatus(ctx context.Context, change workflow.Change[AgendamentoStatus]) (Agendamento, error)
}

// Counter módulo que informa contagem por status.
type Counter interface {
	ContarPorStatus(ctx context.Context) (map[string]int64, error)
}

type Service struct {
	store    store
	cache    *cache.Cache
	policy   request.Policy
	counters map[string]Counter
	now      func() time.Time
}

// NewService counters inclui os demais módulos; o próprio gabinete entra automaticamente.
func NewService(s store, c *cache.Cache, policy request.Policy, counters map[string]Counter) *Service {
	svc := &Service{store: s, cache: c, policy: policy, counters: map[string]Counter{}, now: util.Now}
	for name, counter := range counters {
		if counter != nil {
			svc.counters[name] = counter
		}
	}
	svc.counters["gabinete"] = svc
	return svc
}

func call[T any](ctx context.Context, s *Service, label, message string, fn func(context.Context) (T, error)) (T, error) {
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "gabinete." + label, ErrorMessage: message})).Unwrap()
}

func (s *Service) ListSolicitacoes(ctx context.Context, f Filter) ([]SolicitacaoDireta, error) {
	key := fmt.Sprintf("%slist:%s|%s|%s|%d|%d", cachePrefix, f.Status, f.CidadaoID, f.Busca, f.Limit, f.Offset)
	return call(ctx, s, "list", "Erro ao carregar solicitações do gabinete", func(ctx context.Context) ([]SolicitacaoDireta, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierDefault, func(ctx context.Context) ([]SolicitacaoDireta, error) {
			return s.store.List(ctx, f)
		})
	})
}

func (s *Service) GetSolicitacao(ctx context.Context, id uuid.UUID) (SolicitacaoDireta, error) {
	return call(ctx, s, "get", "", func(ctx context.Context) (SolicitacaoDireta, error) {
		return s.store.Get(ctx, id)
	})
}

// CreateSolicitacao cidadaoID nulo indica registro feito no balcão.
func (s *Service) CreateSolicitacao(ctx context.Context, cidadaoID *uuid.UUID, in SolicitacaoInput) (SolicitacaoDireta, error) {
	nome := strings.TrimSpace(in.NomeSolicitante)
	if err := util.RequireString(nome, "nome do solicitante"); err != nil {
		return SolicitacaoDireta{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.MinLength(in.Assunto, "assunto", 5); err != nil {
		return SolicitacaoDireta{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.MinLength(in.Descricao, "descricao", 10); err != nil {
		return SolicitacaoDireta{}, apperr.Invalid("%s", err.Error())
	}
	values := backend.Values{
		"nome_solicitante": nome,
		"contato":          strings.TrimSpace(in.Contato),
		"assunto":          strings.TrimSpace(in.Assunto),
		"descricao":        strings.TrimSpace(in.Descricao),
	}
	if cidadaoID != nil && *cidadaoID != uuid.Nil {
		values["cidadao_id"] = *cidadaoID
	}
	created, err := call(ctx, s, "create", "Erro ao registrar solicitação", func(ctx context.Context) (SolicitacaoDireta, error) {
		return s.store.Create(ctx, values)
	})
	if err != nil {
		return SolicitacaoDireta{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return created, nil
}

// StatusUpdate mudança de status com os campos que cada destino exige.
type StatusUpdate struct {
	Status            Status `json:"status"`
	Comentario        string `json:"comentario"`
	SecretariaDestino string `json:"secretariaDestino"`
	Resposta          string `json:"resposta"`
}

// UpdateStatus encaminhar exige secretaria; responder exige resposta.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate, actor *uuid.UUID) (SolicitacaoDireta, error) {
	if !Machine.Valid(u.Status) {
		return SolicitacaoDireta{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(u.Status)})
	}
	change := workflow.Change[Status]{ID: id, To: u.Status, Comment: strings.TrimSpace(u.Comentario), Actor: actor, CompletedColumn: "concluido_em"}
	switch u.Status {
	case StatusForwarded:
		destino := strings.TrimSpace(u.SecretariaDestino)
		if destino == "" {
			return SolicitacaoDireta{}, apperr.Invalid("secretaria de destino obrigatória")
		}
		change.Extra = backend.Values{"secretaria_destino": destino}
	case StatusAnswered, StatusRejected:
		resposta := strings.TrimSpace(u.Resposta)
		if resposta == "" {
			return SolicitacaoDireta{}, apperr.Invalid("resposta obrigatória")
		}
		change.Extra = backend.Values{"resposta": resposta}
	}
	updated, err := call(ctx, s, "status", "", func(ctx context.Context) (SolicitacaoDireta, error) {
		return s.store.SetStatus(ctx, change)
	})
	if err != nil {
		return SolicitacaoDireta{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
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

// Agenda

func (s *Service) ListAgenda(ctx context.Context, f AgendaFilter) ([]Agendamento, error) {
	return call(ctx, s, "agenda.list", "Erro ao carregar agenda", func(ctx context.Context) ([]Agendamento, error) {
		return s.store.ListAgenda(ctx, f)
	})
}

// SolicitarAgendamento pedido de audiência; data precisa estar no futuro.
func (s *Service) SolicitarAgendamento(ctx context.Context, in AgendamentoInput) (Agendamento, error) {
	solicitante := strings.TrimSpace(in.Solicitante)
	if err := util.RequireString(solicitante, "solicitante"); err != nil {
		return Agendamento{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.MinLength(in.Assunto, "assunto", 5); err != nil {
		return Agendamento{}, apperr.Invalid("%s", err.Error())
	}
	if in.DataHora.IsZero() || !in.DataHora.After(s.now()) {
		return Agendamento{}, apperr.Invalid("data do agendamento deve ser futura")
	}
	local := strings.TrimSpace(in.Local)
	if local == "" {
		local = "Gabinete"
	}
	created, err := call(ctx, s, "agenda.create", "Erro ao solicitar agendamento", func(ctx context.Context) (Agendamento, error) {
		return s.store.CreateAgendamento(ctx, backend.Values{
			"solicitante": solicitante,
			"contato":     strings.TrimSpace(in.Contato),
			"assunto":     strings.TrimSpace(in.Assunto),
			"data_hora":   in.DataHora.UTC(),
			"local":       local,
			"observacoes": strings.TrimSpace(in.Observacoes),
		})
	})
	if err != nil {
		return Agendamento{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return created, nil
}

func (s *Service) UpdateAgendamentoStatus(ctx context.Context, id uuid.UUID, status AgendamentoStatus, comentario string, actor *uuid.UUID) (Agendamento, error) {
	if !AgendamentoMachine.Valid(status) {
		return Agendamento{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	updated, err := call(ctx, s, "agenda.status", "", func(ctx context.Context) (Agendamento, error) {
		return s.store.SetAgendamentoStatus(ctx, workflow.Change[AgendamentoStatus]{
			ID: id, To: status, Comment: strings.TrimSpace(comentario), Actor: actor, CompletedColumn: "concluido_em",
		})
	})
	if err != nil {
		return Agendamento{}, err
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
	return updated, nil
}

// Dashboard consulta todos os módulos em paralelo. Módulo com falha fica fora
// do painel e é listado em Falhas; painel parcial não vai para o cache.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	dash, err := cache.Remember(ctx, s.cache, dashboardKey, cache.TierShort, s.buildDashboard)
	if errors.Is(err, errPartial) {
		return dash, nil
	}
	return dash, err
}

func (s *Service) buildDashboard(ctx context.Context) (Dashboard, error) {
	dash := Dashboard{
		Modulos:  make(map[string]map[string]int64, len(s.counters)),
		Totais:   make(map[string]int64, len(s.counters)),
		GeradoEm: s.now(),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for name, counter := range s.counters {
		g.Go(func() error {
			counts, err := counter.ContarPorStatus(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn().Err(err).Str("modulo", name).Msg("gabinete: contagem indisponível")
				dash.Falhas = append(dash.Falhas, name)
				return nil
			}
			var total int64
			for _, n := range counts {
				total += n
			}
			dash.Modulos[name] = counts
			dash.Totais[name] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if len(dash.Falhas) > 0 {
		sort.Strings(dash.Falhas)
		return dash, errPartial
	}
	return dash, nil
}
