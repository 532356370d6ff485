package gabinete

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/workflow"
)

type Repository struct {
	solicitacoes *workflow.Records[SolicitacaoDireta, Status]
	agenda       *workflow.Records[Agendamento, AgendamentoStatus]
}

func NewRepository(client *backend.Client) *Repository {
	return &Repository{
		solicitacoes: workflow.NewRecords[SolicitacaoDireta](client, Machine, workflow.RecordsConfig{
			Table: EntitySolicitacao, Prefix: "GAB", CompletedColumn: "concluido_em",
		}),
		agenda: workflow.NewRecords[Agendamento](client, AgendamentoMachine, workflow.RecordsConfig{
			Table: EntityAgendamento, Prefix: "AGD", CompletedColumn: "concluido_em",
		}),
	}
}

func (r *Repository) List(ctx context.Context, f Filter) ([]SolicitacaoDireta, error) {
	return r.solicitacoes.List(ctx, backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("cidadao_id", f.CidadaoID).
		Search("assunto", f.Busca).
		Order("criado_em", true).
		Page(f.Limit, f.Offset))
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (SolicitacaoDireta, error) {
	return r.solicitacoes.Get(ctx, id)
}

func (r *Repository) Create(ctx context.Context, values backend.Values) (SolicitacaoDireta, error) {
	return r.solicitacoes.Create(ctx, values, nil)
}

func (r *Repository) SetStatus(ctx context.Context, change workflow.Change[Status]) (SolicitacaoDireta, error) {
	return r.solicitacoes.SetStatus(ctx, change)
}

func (r *Repository) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return r.solicitacoes.History(ctx, id)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.solicitacoes.CountByStatus(ctx)
}

func (r *Repository) ListAgenda(ctx context.Context, f AgendaFilter) ([]Agendamento, error) {
	q := backend.NewQuery().Eq("status", string(f.Status)).Order("data_hora", false)
	if !f.De.IsZero() {
		q = q.Where("data_hora", backend.OpGte, f.De)
	}
	if !f.Ate.IsZero() {
		q = q.Where("data_hora", backend.OpLt, f.Ate)
	}
	return r.agenda.List(ctx, q)
}

func (r *Repository) CreateAgendamento(ctx context.Context, values backend.Values) (Agendamento, error) {
	return r.agenda.Create(ctx, values, nil)
}

func (r *Repository) SetAgendamentoStatus(ctx context.Context, change workflow.Change[AgendamentoStatus]) (Agendamento, error) {
	return r.agenda.SetStatus(ctx, change)
}
