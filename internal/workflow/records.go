package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/db"
	"github.com/digiurbis/portal/internal/protocolo"
)

// Records tabela de solicitações com protocolo, status controlado pela máquina e histórico.
// Usado pelos repositórios dos módulos de domínio.
type Records[T any, S ~string] struct {
	client    *backend.Client
	table     backend.Table[T]
	updater   *Updater[T, S]
	protocols *protocolo.Generator
	prefix    string
	completed string
	now       func() time.Time
}

// RecordsConfig parâmetros da tabela.
type RecordsConfig struct {
	Table  string
	Prefix string
	// CompletedColumn coluna carimbada ao entrar em estado terminal.
	CompletedColumn string
}

// NewRecords monta o acesso. Prefix vazio desliga a geração de protocolo.
func NewRecords[T any, S ~string](client *backend.Client, m *Machine[S], cfg RecordsConfig) *Records[T, S] {
	table := backend.NewTable[T](cfg.Table)
	return &Records[T, S]{
		client:    client,
		table:     table,
		updater:   NewUpdater(m, table),
		protocols: protocolo.NewGenerator(nil),
		prefix:    cfg.Prefix,
		completed: cfg.CompletedColumn,
		now:       time.Now,
	}
}

func (r *Records[T, S]) Table() backend.Table[T] { return r.table }

func (r *Records[T, S]) Machine() *Machine[S] { return r.updater.Machine }

func (r *Records[T, S]) List(ctx context.Context, q backend.Query) ([]T, error) {
	return r.table.Select(ctx, r.client.DB(), q)
}

func (r *Records[T, S]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	return r.table.Get(ctx, r.client.DB(), id)
}

// Create grava a linha no status inicial com protocolo novo. after roda na mesma
// transação (itens filhos, primeira tramitação...).
func (r *Records[T, S]) Create(ctx context.Context, values backend.Values, after func(ctx context.Context, conn db.DBTX, row T) error) (T, error) {
	var created T
	err := r.client.Tx(ctx, func(ctx context.Context, conn db.DBTX) error {
		row := backend.Values{}
		for k, v := range values {
			row[k] = v
		}
		if _, ok := row["id"]; !ok {
			row["id"] = uuid.New()
		}
		if r.prefix != "" {
			number, err := r.protocols.Next(ctx, conn, r.prefix)
			if err != nil {
				return err
			}
			row["protocolo"] = number
		}
		now := r.now().UTC()
		row["status"] = string(r.updater.Machine.Initial())
		row["criado_em"] = now
		row["atualizado_em"] = now

		out, err := r.table.Insert(ctx, conn, row)
		if err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, conn, out); err != nil {
				return err
			}
		}
		created = out
		return nil
	})
	return created, err
}

// Update altera campos que não são status.
func (r *Records[T, S]) Update(ctx context.Context, id uuid.UUID, values backend.Values) (T, error) {
	patch := backend.Values{}
	for k, v := range values {
		if k == "status" || k == "protocolo" {
			continue
		}
		patch[k] = v
	}
	if len(patch) > 0 {
		patch["atualizado_em"] = r.now().UTC()
	}
	return r.table.Update(ctx, r.client.DB(), id, patch)
}

// SetStatus valida e grava a mudança com histórico, em transação.
func (r *Records[T, S]) SetStatus(ctx context.Context, change Change[S]) (T, error) {
	var updated T
	err := r.client.Tx(ctx, func(ctx context.Context, conn db.DBTX) error {
		row, _, err := r.ApplyTx(ctx, conn, change)
		if err != nil {
			return err
		}
		updated = row
		return nil
	})
	return updated, err
}

// ApplyTx igual a SetStatus dentro de uma transação do chamador. Devolve o status anterior.
func (r *Records[T, S]) ApplyTx(ctx context.Context, conn db.DBTX, change Change[S]) (T, S, error) {
	if change.CompletedColumn == "" {
		change.CompletedColumn = r.completed
	}
	return r.updater.Apply(ctx, conn, change)
}

// Client acesso ao banco para operações compostas do repositório.
func (r *Records[T, S]) Client() *backend.Client { return r.client }

func (r *Records[T, S]) Delete(ctx context.Context, id uuid.UUID) error {
	return r.table.Delete(ctx, r.client.DB(), id)
}

// CountByStatus contagem por status para painéis.
func (r *Records[T, S]) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.table.CountBy(ctx, r.client.DB(), "status")
}

// History mudanças de status da linha.
func (r *Records[T, S]) History(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	return r.updater.History.List(ctx, r.client.DB(), r.table.Name(), id)
}
