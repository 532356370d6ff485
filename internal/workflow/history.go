package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/db"
)

// Entry linha de historico_status.
type Entry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Entidade   string     `db:"entidade" json:"entidade"`
	EntidadeID uuid.UUID  `db:"entidade_id" json:"entidadeId"`
	De         string     `db:"de" json:"de"`
	Para       string     `db:"para" json:"para"`
	Comentario string     `db:"comentario" json:"comentario"`
	Autor      *uuid.UUID `db:"autor" json:"autor,omitempty"`
	CriadoEm   time.Time  `db:"criado_em" json:"criadoEm"`
}

// History grava e lê o histórico de status.
type History struct {
	table backend.Table[Entry]
}

func NewHistory() History {
	return History{table: backend.NewTable[Entry]("historico_status")}
}

// Record grava uma mudança.
func (h History) Record(ctx context.Context, conn db.DBTX, e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CriadoEm.IsZero() {
		e.CriadoEm = time.Now().UTC()
	}
	return h.table.Insert(ctx, conn, backend.Values{
		"id":          e.ID,
		"entidade":    e.Entidade,
		"entidade_id": e.EntidadeID,
		"de":          e.De,
		"para":        e.Para,
		"comentario":  e.Comentario,
		"autor":       e.Autor,
		"criado_em":   e.CriadoEm,
	})
}

// List histórico da entidade em ordem cronológica.
func (h History) List(ctx context.Context, conn db.DBTX, entidade string, id uuid.UUID) ([]Entry, error) {
	q := backend.NewQuery().
		Where("entidade", backend.OpEq, entidade).
		Where("entidade_id", backend.OpEq, id).
		Order("criado_em", false)
	return h.table.Select(ctx, conn, q)
}
