package attachment

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/db"
)

// Repository persiste metadados em anexos.
type Repository struct {
	conn  db.DBTX
	table backend.Table[Anexo]
}

func NewRepository(conn db.DBTX) *Repository {
	return &Repository{conn: conn, table: backend.NewTable[Anexo]("anexos")}
}

func (r *Repository) Insert(ctx context.Context, a Anexo) (Anexo, error) {
	return r.table.Insert(ctx, r.conn, backend.Values{
		"id":           a.ID,
		"entidade":     a.Entidade,
		"entidade_id":  a.EntidadeID,
		"nome_arquivo": a.NomeArquivo,
		"bucket":       a.Bucket,
		"caminho":      a.Caminho,
		"tipo":         a.Tipo,
		"tamanho":      a.Tamanho,
		"enviado_por":  a.EnviadoPor,
		"criado_em":    a.CriadoEm,
	})
}

func (r *Repository) List(ctx context.Context, entidade string, entidadeID uuid.UUID) ([]Anexo, error) {
	q := backend.NewQuery().
		Where("entidade", backend.OpEq, entidade).
		Where("entidade_id", backend.OpEq, entidadeID).
		Order("criado_em", false)
	return r.table.Select(ctx, r.conn, q)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Anexo, error) {
	return r.table.Get(ctx, r.conn, id)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.table.Delete(ctx, r.conn, id)
}

func (r *Repository) ExistsPath(ctx context.Context, bucket, path string) (bool, error) {
	n, err := r.table.Count(ctx, r.conn, backend.NewQuery().
		Where("bucket", backend.OpEq, bucket).
		Where("caminho", backend.OpEq, path))
	return n > 0, err
}
