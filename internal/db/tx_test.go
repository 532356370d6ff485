package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commits   int
	rollbacks int
	commitErr error
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rollbacks++
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (f *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	require.NoError(t, WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error { return nil }))
	assert.Equal(t, 1, b.tx.commits)
	assert.Equal(t, 0, b.tx.rollbacks)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, b.tx.commits)
	assert.Equal(t, 1, b.tx.rollbacks)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	assert.Panics(t, func() {
		_ = WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error { panic("x") })
	})
	assert.Equal(t, 1, b.tx.rollbacks)
}

func TestWithTxCommitAndBeginErrors(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{commitErr: errors.New("conn reset")}}
	err := WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error { return nil })
	assert.ErrorContains(t, err, "commit")

	err = WithTx(context.Background(), &fakeBeginner{err: errors.New("down")}, func(ctx context.Context, tx pgx.Tx) error {
		t.Fatal("fn não deveria rodar")
		return nil
	})
	assert.ErrorContains(t, err, "begin")
}
