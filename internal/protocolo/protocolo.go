// Package protocolo gera números de protocolo legíveis no formato PREFIXO-AAAA-NNNNNN.
package protocolo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const nextSQL = `INSERT INTO protocolo_contadores (prefixo, ano, ultimo)
VALUES ($1, $2, 1)
ON CONFLICT (prefixo, ano) DO UPDATE SET ultimo = protocolo_contadores.ultimo + 1
RETURNING ultimo`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Generator avança contadores por (prefixo, ano).
type Generator struct {
	now func() time.Time
}

// NewGenerator usa o relógio informado (nil = time.Now).
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Next reserva o próximo número. Deve rodar na mesma transação do insert da entidade.
func (g *Generator) Next(ctx context.Context, conn queryRower, prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", fmt.Errorf("protocolo: prefixo obrigatório")
	}
	year := g.now().UTC().Year()

	var seq int64
	if err := conn.QueryRow(ctx, nextSQL, prefix, year).Scan(&seq); err != nil {
		return "", fmt.Errorf("protocolo: %w", err)
	}
	return Format(prefix, year, seq), nil
}

// Format monta o número a partir das partes.
func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// Parse separa prefixo, ano e sequência.
func Parse(s string) (prefix string, year int, seq int64, err error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, fmt.Errorf("protocolo inválido: %q", s)
	}
	y, yerr := strconv.Atoi(parts[1])
	n, nerr := strconv.ParseInt(parts[2], 10, 64)
	if yerr != nil || nerr != nil || len(parts[1]) != 4 || y <= 0 || n <= 0 {
		return "", 0, 0, fmt.Errorf("protocolo inválido: %q", s)
	}
	return parts[0], y, n, nil
}
