package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/db"
	"github.com/digiurbis/portal/internal/storage"
)

// Buckets nomes dos buckets usados pelo portal.
type Buckets struct {
	Anexos     string
	Documentos string
}

// Client reúne banco e armazenamento. Uma instância por processo, criada em main e injetada.
type Client struct {
	pool    *pgxpool.Pool
	conn    db.DBTX
	store   storage.Store
	buckets Buckets
}

// New cria o cliente. pool pode ser nil em testes que usam apenas conn.
func New(pool *pgxpool.Pool, store storage.Store, buckets Buckets) *Client {
	if store == nil {
		store = storage.NoopUploader{}
	}
	c := &Client{pool: pool, store: store, buckets: buckets}
	if pool != nil {
		c.conn = pool
	}
	return c
}

// NewWithConn usa uma conexão arbitrária (pgx.Tx, stub de teste).
func NewWithConn(conn db.DBTX, store storage.Store, buckets Buckets) *Client {
	if store == nil {
		store = storage.NoopUploader{}
	}
	return &Client{conn: conn, store: store, buckets: buckets}
}

// DB conexão padrão para consultas.
func (c *Client) DB() db.DBTX { return c.conn }

// Buckets nomes configurados.
func (c *Client) Buckets() Buckets { return c.buckets }

// Tx executa fn em transação. Sem pool (testes) executa direto na conexão.
func (c *Client) Tx(ctx context.Context, fn func(ctx context.Context, conn db.DBTX) error) error {
	if c.pool == nil {
		return fn(ctx, c.conn)
	}
	return db.WithTx(ctx, c.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// Ping verifica banco.
func (c *Client) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Ping(ctx)
}

// Upload grava bytes no bucket.
func (c *Client) Upload(ctx context.Context, bucket, path string, body []byte, contentType string) (*storage.UploadResult, error) {
	res, err := c.store.Upload(ctx, storage.UploadInput{Bucket: bucket, Key: path, Body: body, ContentType: contentType})
	if err != nil {
		return nil, storageError("upload", err)
	}
	return res, nil
}

// Remove apaga o objeto; ausente não é erro.
func (c *Client) Remove(ctx context.Context, bucket, path string) error {
	err := c.store.Delete(ctx, bucket, path)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	return storageError("remove", err)
}

func storageError(op string, err error) error {
	if errors.Is(err, storage.ErrNotConfigured) {
		return apperr.Wrap(err, apperr.Unexpected, "armazenamento de arquivos indisponível")
	}
	cat := apperr.Categorize(err)
	return apperr.Wrap(err, cat.Category, fmt.Sprintf("storage %s", op))
}
