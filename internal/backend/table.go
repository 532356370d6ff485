// Package backend concentra o acesso genérico a tabelas e buckets usado pelos
// módulos de domínio: select/insert/update/delete por nome de tabela.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/db"
)

// Table acesso tipado a uma tabela. T usa tags `db:"coluna"`.
type Table[T any] struct {
	name string
	pk   string
}

// NewTable cria acesso à tabela com chave primária "id".
func NewTable[T any](name string) Table[T] {
	return Table[T]{name: name, pk: "id"}
}

// Name nome da tabela.
func (t Table[T]) Name() string { return t.name }

// SelectSQL monta o select com filtros.
func (t Table[T]) SelectSQL(q Query) (string, []any) {
	where, args := q.where(1)
	return "SELECT * FROM " + quote(t.name) + where + q.tail(), args
}

// Select lista linhas conforme a consulta.
func (t Table[T]) Select(ctx context.Context, conn db.DBTX, q Query) ([]T, error) {
	sql, args := t.SelectSQL(q)
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, t.wrap("select", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, t.wrap("select", err)
	}
	return items, nil
}

// First devolve a primeira linha ou erro not_found.
func (t Table[T]) First(ctx context.Context, conn db.DBTX, q Query) (T, error) {
	q.Limit = 1
	sql, args := t.SelectSQL(q)
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		var zero T
		return zero, t.wrap("select", err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return item, t.wrap("select", err)
	}
	return item, nil
}

// Get busca pela chave primária.
func (t Table[T]) Get(ctx context.Context, conn db.DBTX, id uuid.UUID) (T, error) {
	return t.First(ctx, conn, NewQuery().Where(t.pk, OpEq, id))
}

// InsertSQL monta o insert com RETURNING *.
func (t Table[T]) InsertSQL(values Values) (string, []any) {
	keys := values.sortedKeys()
	cols := make([]string, len(keys))
	params := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = quote(k)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[k]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quote(t.name), strings.Join(cols, ", "), strings.Join(params, ", "))
	return sql, args
}

// Insert grava e devolve a linha criada.
func (t Table[T]) Insert(ctx context.Context, conn db.DBTX, values Values) (T, error) {
	var zero T
	if len(values) == 0 {
		return zero, apperr.Invalid("nenhum campo informado para %s", t.name)
	}
	sql, args := t.InsertSQL(values)
	return t.returning(ctx, conn, "insert", sql, args)
}

// UpdateSQL monta o update por chave primária com RETURNING *.
func (t Table[T]) UpdateSQL(id uuid.UUID, values Values) (string, []any) {
	keys := values.sortedKeys()
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", quote(k), i+1)
		args = append(args, values[k])
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING *",
		quote(t.name), strings.Join(sets, ", "), quote(t.pk), len(keys)+1)
	return sql, args
}

// Update altera colunas e devolve a linha atualizada.
func (t Table[T]) Update(ctx context.Context, conn db.DBTX, id uuid.UUID, values Values) (T, error) {
	if len(values) == 0 {
		return t.Get(ctx, conn, id)
	}
	sql, args := t.UpdateSQL(id, values)
	return t.returning(ctx, conn, "update", sql, args)
}

// Delete remove pela chave primária.
func (t Table[T]) Delete(ctx context.Context, conn db.DBTX, id uuid.UUID) error {
	tag, err := conn.Exec(ctx, "DELETE FROM "+quote(t.name)+" WHERE "+quote(t.pk)+" = $1", id)
	if err != nil {
		return t.wrap("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return t.wrap("delete", pgx.ErrNoRows)
	}
	return nil
}

// Count conta linhas que atendem aos filtros.
func (t Table[T]) Count(ctx context.Context, conn db.DBTX, q Query) (int64, error) {
	where, args := q.where(1)
	var n int64
	if err := conn.QueryRow(ctx, "SELECT count(*) FROM "+quote(t.name)+where, args...).Scan(&n); err != nil {
		return 0, t.wrap("count", err)
	}
	return n, nil
}

// CountBy agrupa contagens por uma coluna (ex.: status).
func (t Table[T]) CountBy(ctx context.Context, conn db.DBTX, column string) (map[string]int64, error) {
	col := quote(column)
	rows, err := conn.Query(ctx, "SELECT "+col+"::text, count(*) FROM "+quote(t.name)+" GROUP BY "+col)
	if err != nil {
		return nil, t.wrap("count", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, t.wrap("count", err)
		}
		out[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, t.wrap("count", err)
	}
	return out, nil
}

func (t Table[T]) returning(ctx context.Context, conn db.DBTX, op, sql string, args []any) (T, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		var zero T
		return zero, t.wrap(op, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return item, t.wrap(op, err)
	}
	return item, nil
}

// wrap categoriza o erro mantendo a causa para errors.Is/As.
func (t Table[T]) wrap(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(err, apperr.NotFound, "registro não encontrado em "+t.name)
	}
	cat := apperr.Categorize(err)
	return apperr.Wrap(err, cat.Category, fmt.Sprintf("%s %s", op, t.name))
}
