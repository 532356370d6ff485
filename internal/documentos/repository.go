package documentos

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/db"
	"github.com/digiurbis/portal/internal/workflow"
)

type Repository struct {
	records     *workflow.Records[Documento, Status]
	tramitacoes backend.Table[Tramitacao]
}

func NewRepository(client *backend.Client) *Repository {
	return &Repository{
		records: workflow.NewRecords[Documento](client, Machine, workflow.RecordsConfig{
			Table:           Entity,
			Prefix:          "DOC",
			CompletedColumn: "concluido_em",
		}),
		tramitacoes: backend.NewTable[Tramitacao]("tramitacoes"),
	}
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Documento, error) {
	return r.records.List(ctx, backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("tipo", f.Tipo).
		Eq("setor_atual", f.Setor).
		Search("assunto", f.Busca).
		Order("criado_em", true).
		Page(f.Limit, f.Offset))
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Documento, error) {
	return r.records.Get(ctx, id)
}

// Create protocola e registra a entrada no setor inicial.
func (r *Repository) Create(ctx context.Context, values backend.Values, autor *uuid.UUID) (Documento, error) {
	return r.records.Create(ctx, values, func(ctx context.Context, conn db.DBTX, doc Documento) error {
		_, err := r.tramitacoes.Insert(ctx, conn, backend.Values{
			"documento_id": doc.ID,
			"origem":       "externo",
			"destino":      doc.SetorAtual,
			"despacho":     "Documento protocolado",
			"autor":        autor,
			"criado_em":    doc.CriadoEm,
		})
		return err
	})
}

// Encaminhar muda setor e status e grava a tramitação na mesma transação.
func (r *Repository) Encaminhar(ctx context.Context, e Encaminhamento) (Documento, error) {
	var updated Documento
	err := r.records.Client().Tx(ctx, func(ctx context.Context, conn db.DBTX) error {
		doc, _, err := r.records.ApplyTx(ctx, conn, workflow.Change[Status]{
			ID:      e.DocumentoID,
			To:      StatusForwarded,
			Comment: e.Despacho,
			Actor:   e.Autor,
			Extra:   backend.Values{"setor_atual": e.Destino},
		})
		if err != nil {
			return err
		}
		if _, err := r.tramitacoes.Insert(ctx, conn, backend.Values{
			"documento_id": e.DocumentoID,
			"origem":       e.Origem,
			"destino":      e.Destino,
			"despacho":     e.Despacho,
			"autor":        e.Autor,
			"criado_em":    doc.AtualizadoEm,
		}); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	return updated, err
}

func (r *Repository) SetStatus(ctx context.Context, change workflow.Change[Status]) (Documento, error) {
	return r.records.SetStatus(ctx, change)
}

func (r *Repository) Tramitacoes(ctx context.Context, id uuid.UUID) ([]Tramitacao, error) {
	return r.tramitacoes.Select(ctx, r.records.Client().DB(), backend.NewQuery().
		Where("documento_id", backend.OpEq, id).
		Order("criado_em", false))
}

func (r *Repository) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return r.records.History(ctx, id)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.records.CountByStatus(ctx)
}
