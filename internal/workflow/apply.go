package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/db"
)

// Change pedido de mudança de status de uma linha.
type Change[S ~string] struct {
	ID      uuid.UUID
	To      S
	Comment string
	Actor   *uuid.UUID
	// Extra colunas gravadas junto (parecer, resposta...).
	Extra backend.Values
	// CompletedColumn coluna carimbada ao entrar em estado terminal. Vazio desliga.
	CompletedColumn string
}

// Updater aplica mudanças de status validadas pela máquina e grava histórico.
type Updater[T any, S ~string] struct {
	Machine *Machine[S]
	Table   backend.Table[T]
	History History
	Now     func() time.Time
}

// NewUpdater cria o aplicador para a tabela.
func NewUpdater[T any, S ~string](m *Machine[S], table backend.Table[T]) *Updater[T, S] {
	return &Updater[T, S]{Machine: m, Table: table, History: NewHistory(), Now: time.Now}
}

// Current lê o status atual travando a linha.
func (u *Updater[T, S]) Current(ctx context.Context, conn db.DBTX, id uuid.UUID) (S, error) {
	var current string
	sql := fmt.Sprintf("SELECT status::text FROM %s WHERE id = $1 FOR UPDATE", pgx.Identifier{u.Table.Name()}.Sanitize())
	if err := conn.QueryRow(ctx, sql, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.Wrap(err, apperr.NotFound, "registro não encontrado em "+u.Table.Name())
		}
		return "", apperr.Wrap(err, apperr.CategoryOf(err), "status "+u.Table.Name())
	}
	return S(current), nil
}

// Apply valida e grava. Deve rodar dentro de transação.
func (u *Updater[T, S]) Apply(ctx context.Context, conn db.DBTX, change Change[S]) (T, S, error) {
	var zero T

	from, err := u.Current(ctx, conn, change.ID)
	if err != nil {
		return zero, "", err
	}
	now := u.Now().UTC()
	values, err := u.Machine.Plan(from, change, now)
	if err != nil {
		return zero, from, err
	}

	row, err := u.Table.Update(ctx, conn, change.ID, values)
	if err != nil {
		return zero, from, err
	}

	if _, err := u.History.Record(ctx, conn, Entry{
		Entidade:   u.Table.Name(),
		EntidadeID: change.ID,
		De:         string(from),
		Para:       string(change.To),
		Comentario: change.Comment,
		Autor:      change.Actor,
		CriadoEm:   now,
	}); err != nil {
		return zero, from, err
	}

	return row, from, nil
}

// Plan valida a mudança e devolve as colunas a gravar.
// Entrar (ou permanecer) em estado terminal carimba CompletedColumn.
func (m *Machine[S]) Plan(from S, change Change[S], now time.Time) (backend.Values, error) {
	if err := m.Check(from, change.To); err != nil {
		return nil, err
	}
	values := backend.Values{}
	for k, v := range change.Extra {
		values[k] = v
	}
	values["status"] = string(change.To)
	values["atualizado_em"] = now
	if change.CompletedColumn != "" && m.IsTerminal(change.To) {
		values[change.CompletedColumn] = now
	}
	return values, nil
}
