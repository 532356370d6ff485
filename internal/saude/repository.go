package saude

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/workflow"
)

type Repository struct {
	records *workflow.Records[SolicitacaoTransporte, Status]
}

func NewRepository(client *backend.Client) *Repository {
	return &Repository{records: workflow.NewRecords[SolicitacaoTransporte](client, Machine, workflow.RecordsConfig{
		Table:           Entity,
		Prefix:          "TRS",
		CompletedColumn: "concluido_em",
	})}
}

func (r *Repository) List(ctx context.Context, f Filter) ([]SolicitacaoTransporte, error) {
	q := backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("cidadao_id", f.CidadaoID).
		Search("destino", f.Destino).
		Order("data_consulta", false).
		Page(f.Limit, f.Offset)
	if !f.De.IsZero() {
		q = q.Where("data_consulta", backend.OpGte, f.De)
	}
	if !f.Ate.IsZero() {
		q = q.Where("data_consulta", backend.OpLt, f.Ate)
	}
	return r.records.List(ctx, q)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (SolicitacaoTransporte, error) {
	return r.records.Get(ctx, id)
}

func (r *Repository) Create(ctx context.Context, values backend.Values) (SolicitacaoTransporte, error) {
	return r.records.Create(ctx, values, nil)
}

func (r *Repository) SetStatus(ctx context.Context, change workflow.Change[Status]) (SolicitacaoTransporte, error) {
	return r.records.SetStatus(ctx, change)
}

func (r *Repository) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return r.records.History(ctx, id)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.records.CountByStatus(ctx)
}
