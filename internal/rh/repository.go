package rh

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/workflow"
)

type Repository struct {
	records *workflow.Records[Solicitacao, Status]
}

func NewRepository(client *backend.Client) *Repository {
	return &Repository{records: workflow.NewRecords[Solicitacao](client, Machine, workflow.RecordsConfig{
		Table:           Entity,
		Prefix:          "RH",
		CompletedColumn: "concluido_em",
	})}
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Solicitacao, error) {
	return r.records.List(ctx, backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("tipo", f.Tipo).
		Eq("servidor_id", f.ServidorID).
		Order("criado_em", true).
		Page(f.Limit, f.Offset))
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Solicitacao, error) {
	return r.records.Get(ctx, id)
}

func (r *Repository) Create(ctx context.Context, values backend.Values) (Solicitacao, error) {
	return r.records.Create(ctx, values, nil)
}

func (r *Repository) SetStatus(ctx context.Context, change workflow.Change[Status]) (Solicitacao, error) {
	return r.records.SetStatus(ctx, change)
}

func (r *Repository) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return r.records.History(ctx, id)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.records.CountByStatus(ctx)
}
