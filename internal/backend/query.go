package backend

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Op operador de comparação aceito em filtros.
type Op string

const (
	OpEq    Op = "="
	OpNeq   Op = "<>"
	OpGt    Op = ">"
	OpGte   Op = ">="
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpILike Op = "ILIKE"
	OpIn    Op = "= ANY"
	OpNull  Op = "IS NULL"
)

// Filter condição simples coluna/operador/valor.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Query descreve filtros, ordenação e paginação de um select.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// NewQuery inicia uma consulta vazia.
func NewQuery() Query { return Query{} }

func (q Query) Where(column string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Op: op, Value: value})
	return q
}

// Eq atalho para igualdade; valores vazios são ignorados.
func (q Query) Eq(column string, value any) Query {
	if isEmpty(value) {
		return q
	}
	return q.Where(column, OpEq, value)
}

// Search aplica ILIKE %termo% quando o termo não é vazio.
func (q Query) Search(column, term string) Query {
	term = strings.TrimSpace(term)
	if term == "" {
		return q
	}
	return q.Where(column, OpILike, "%"+escapeLike(term)+"%")
}

func (q Query) Order(column string, desc bool) Query {
	q.OrderBy = column
	q.Desc = desc
	return q
}

func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

// Key representação estável para chaves de cache.
func (q Query) Key() string {
	var b strings.Builder
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "%s%s%v;", f.Column, f.Op, f.Value)
	}
	fmt.Fprintf(&b, "o=%s:%t;l=%d;off=%d", q.OrderBy, q.Desc, q.Limit, q.Offset)
	return b.String()
}

// where monta a cláusula WHERE a partir de $start.
func (q Query) where(start int) (string, []any) {
	if len(q.Filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(q.Filters))
	args := make([]any, 0, len(q.Filters))
	n := start
	for _, f := range q.Filters {
		col := quote(f.Column)
		switch f.Op {
		case OpNull:
			parts = append(parts, col+" IS NULL")
		case OpIn:
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col, n))
			args = append(args, f.Value)
			n++
		default:
			op := f.Op
			if op == "" {
				op = OpEq
			}
			parts = append(parts, fmt.Sprintf("%s %s $%d", col, op, n))
			args = append(args, f.Value)
			n++
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (q Query) tail() string {
	var b strings.Builder
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(quote(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return b.String()
}

// Values colunas e valores para insert/update.
type Values map[string]any

func (v Values) sortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case uuid.UUID:
		return x == uuid.Nil
	case *uuid.UUID:
		return x == nil || *x == uuid.Nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}
