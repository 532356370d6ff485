package compras

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/db"
	"github.com/digiurbis/portal/internal/workflow"
)

// Repository persiste solicitações e itens.
type Repository struct {
	client  *backend.Client
	records *workflow.Records[Solicitacao, Status]
	itens   backend.Table[Item]
}

func NewRepository(client *backend.Client) *Repository {
	return &Repository{
		client: client,
		records: workflow.NewRecords[Solicitacao](client, Machine, workflow.RecordsConfig{
			Table:           Entity,
			Prefix:          "COMP",
			CompletedColumn: "concluido_em",
		}),
		itens: backend.NewTable[Item]("itens_compra"),
	}
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Solicitacao, error) {
	q := backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("departamento", f.Departamento).
		Eq("prioridade", f.Prioridade).
		Eq("solicitante_id", f.SolicitanteID).
		Search("justificativa", f.Busca).
		Order("criado_em", true).
		Page(f.Limit, f.Offset)
	return r.records.List(ctx, q)
}

// Get devolve a solicitação com itens.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Solicitacao, error) {
	s, err := r.records.Get(ctx, id)
	if err != nil {
		return s, err
	}
	s.Itens, err = r.itens.Select(ctx, r.client.DB(), backend.NewQuery().Where("solicitacao_id", backend.OpEq, id))
	return s, err
}

// Create grava solicitação e itens na mesma transação.
func (r *Repository) Create(ctx context.Context, in NovaSolicitacao) (Solicitacao, error) {
	var itens []Item
	created, err := r.records.Create(ctx, backend.Values{
		"solicitante_id": in.SolicitanteID,
		"departamento":   in.Departamento,
		"justificativa":  in.Justificativa,
		"prioridade":     in.Prioridade,
		"observacoes":    in.Observacoes,
	}, func(ctx context.Context, conn db.DBTX, row Solicitacao) error {
		for _, it := range in.Itens {
			item, err := r.itens.Insert(ctx, conn, backend.Values{
				"id":             uuid.New(),
				"solicitacao_id": row.ID,
				"descricao":      it.Descricao,
				"quantidade":     it.Quantidade,
				"unidade":        it.Unidade,
				"valor_unitario": it.ValorUnitario,
			})
			if err != nil {
				return err
			}
			itens = append(itens, item)
		}
		return nil
	})
	if err != nil {
		return created, err
	}
	created.Itens = itens
	return created, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, values backend.Values) (Solicitacao, error) {
	return r.records.Update(ctx, id, values)
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
