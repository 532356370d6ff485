// Package repo acessa as tabelas de identidade: servidores, permissões,
// cidadãos, refresh tokens e passkeys.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/digiurbis/portal/internal/db"
)

// Queries concentra as consultas de identidade.
type Queries struct {
	db db.DBTX
}

// New cria Queries sobre pool ou transação.
func New(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

// WithTx devolve cópia presa à transação.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const usuarioColumns = `id, nome, email, senha_hash, role, departamento, cargo, ativo, criado_em`

func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	return oneRow[Usuario](ctx, q.db, `SELECT `+usuarioColumns+` FROM usuarios WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	return oneRow[Usuario](ctx, q.db, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id)
}

func (q *Queries) InsertUsuario(ctx context.Context, arg InsertUsuarioParams) (Usuario, error) {
	return oneRow[Usuario](ctx, q.db, `
        INSERT INTO usuarios (id, nome, email, senha_hash, role, departamento, cargo)
        VALUES ($1, $2, lower($3), $4, $5, $6, $7)
        RETURNING `+usuarioColumns,
		arg.ID, arg.Nome, arg.Email, arg.SenhaHash, arg.Role, arg.Departamento, arg.Cargo)
}

func (q *Queries) UpdateUsuarioSenha(ctx context.Context, id uuid.UUID, senhaHash string) error {
	return execOne(ctx, q.db, `UPDATE usuarios SET senha_hash = $2 WHERE id = $1`, id, senhaHash)
}

func (q *Queries) UpdateUsuarioRole(ctx context.Context, id uuid.UUID, role string) error {
	return execOne(ctx, q.db, `UPDATE usuarios SET role = $2 WHERE id = $1`, id, role)
}

func (q *Queries) ListPermissoes(ctx context.Context, usuarioID uuid.UUID) ([]Permissao, error) {
	rows, err := q.db.Query(ctx, `
        SELECT usuario_id, modulo, pode_criar, pode_ler, pode_editar, pode_excluir
        FROM permissoes_usuario
        WHERE usuario_id = $1
        ORDER BY modulo
    `, usuarioID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Permissao])
}

func (q *Queries) UpsertPermissao(ctx context.Context, p Permissao) error {
	_, err := q.db.Exec(ctx, `
        INSERT INTO permissoes_usuario (usuario_id, modulo, pode_criar, pode_ler, pode_editar, pode_excluir)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (usuario_id, modulo) DO UPDATE
        SET pode_criar = EXCLUDED.pode_criar,
            pode_ler = EXCLUDED.pode_ler,
            pode_editar = EXCLUDED.pode_editar,
            pode_excluir = EXCLUDED.pode_excluir
    `, p.UsuarioID, p.Modulo, p.PodeCriar, p.PodeLer, p.PodeEditar, p.PodeExcluir)
	return mapErr(err)
}

const cidadaoColumns = `id, nome, email, senha_hash, cpf, telefone, logradouro, numero, complemento, bairro, cidade, uf, cep, ativo, criado_em`

func (q *Queries) GetCidadaoByEmail(ctx context.Context, email string) (Cidadao, error) {
	return oneRow[Cidadao](ctx, q.db, `SELECT `+cidadaoColumns+` FROM cidadaos WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (q *Queries) GetCidadaoByID(ctx context.Context, id uuid.UUID) (Cidadao, error) {
	return oneRow[Cidadao](ctx, q.db, `SELECT `+cidadaoColumns+` FROM cidadaos WHERE id = $1`, id)
}

func (q *Queries) InsertCidadao(ctx context.Context, arg InsertCidadaoParams) (Cidadao, error) {
	e := arg.Endereco
	return oneRow[Cidadao](ctx, q.db, `
        INSERT INTO cidadaos (id, nome, email, senha_hash, cpf, telefone, logradouro, numero, complemento, bairro, cidade, uf, cep)
        VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING `+cidadaoColumns,
		arg.ID, arg.Nome, arg.Email, arg.SenhaHash, arg.CPF, arg.Telefone,
		e.Logradouro, e.Numero, e.Complemento, e.Bairro, e.Cidade, e.UF, e.CEP)
}

func (q *Queries) UpdateCidadaoSenha(ctx context.Context, id uuid.UUID, senhaHash string) error {
	return execOne(ctx, q.db, `UPDATE cidadaos SET senha_hash = $2 WHERE id = $1`, id, senhaHash)
}

func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	return oneRow[TokenRefresh](ctx, q.db, `
        INSERT INTO tokens_refresh (id, subject, audience, token_hash, expiracao, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, subject, audience, token_hash, expiracao, criado_em, revogado
    `, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.Expiracao, arg.CriadoEm)
}

func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	return oneRow[TokenRefresh](ctx, q.db, `
        SELECT id, subject, audience, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh WHERE token_hash = $1
    `, tokenHash)
}

// InvalidateOtherRefreshTokens mantém uma sessão ativa por subject/audience.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	_, err := q.db.Exec(ctx, `
        UPDATE tokens_refresh SET revogado = TRUE
        WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND NOT revogado
    `, subject, audience, keepHash)
	return err
}

func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return execOne(ctx, q.db, `UPDATE tokens_refresh SET revogado = TRUE WHERE token_hash = $1`, tokenHash)
}

// RevokeAllRefreshTokens revoga todas as sessões do subject e devolve os tokens afetados.
func (q *Queries) RevokeAllRefreshTokens(ctx context.Context, subject uuid.UUID) ([]TokenRefresh, error) {
	rows, err := q.db.Query(ctx, `
        UPDATE tokens_refresh SET revogado = TRUE
        WHERE subject = $1 AND NOT revogado
        RETURNING id, subject, audience, token_hash, expiracao, criado_em, revogado
    `, subject)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[TokenRefresh])
}

const passkeyColumns = `id, usuario_id, credential_id, public_key, sign_count, aaguid, transports, criado_em, ultimo_uso`

func (q *Queries) ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]PasskeyCredential, error) {
	rows, err := q.db.Query(ctx, `SELECT `+passkeyColumns+` FROM webauthn_credenciais WHERE usuario_id = $1 ORDER BY criado_em DESC`, usuarioID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[PasskeyCredential])
}

func (q *Queries) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (PasskeyCredential, error) {
	return oneRow[PasskeyCredential](ctx, q.db, `SELECT `+passkeyColumns+` FROM webauthn_credenciais WHERE credential_id = $1`, credentialID)
}

func (q *Queries) InsertPasskey(ctx context.Context, c PasskeyCredential) (PasskeyCredential, error) {
	if c.Transports == nil {
		c.Transports = []string{}
	}
	return oneRow[PasskeyCredential](ctx, q.db, `
        INSERT INTO webauthn_credenciais (usuario_id, credential_id, public_key, sign_count, aaguid, transports)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+passkeyColumns,
		c.UsuarioID, c.CredentialID, c.PublicKey, c.SignCount, c.AAGUID, c.Transports)
}

func (q *Queries) UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount int64, usedAt time.Time) error {
	return execOne(ctx, q.db, `UPDATE webauthn_credenciais SET sign_count = $2, ultimo_uso = $3 WHERE id = $1`, id, signCount, usedAt)
}

func oneRow[T any](ctx context.Context, conn db.DBTX, sql string, args ...any) (T, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		var zero T
		return zero, mapErr(err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
	return item, mapErr(err)
}

func execOne(ctx context.Context, conn db.DBTX, sql string, args ...any) error {
	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate.WithDetails(map[string]string{"constraint": pgErr.ConstraintName})
	}
	return err
}
