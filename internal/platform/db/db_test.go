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

func (t *fakeTx) Commit(ctx context.Context) error {
	t.commits++
	return t.commitErr
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rollbacks++
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (b *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}

	err := WithTx(context.Background(), b, func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, pgx.RepeatableRead, b.opts.IsoLevel)
	assert.Equal(t, 1, b.tx.commits)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("audit insert failed")

	err := WithTx(context.Background(), b, func(tx pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, b.tx.commits)
	assert.Equal(t, 1, b.tx.rollbacks)
}

func TestWithTxWrapsBeginAndCommitErrors(t *testing.T) {
	down := errors.New("pool closed")
	err := WithTx(context.Background(), &fakeBeginner{err: down}, func(pgx.Tx) error {
		t.Fatal("fn must not run without a transaction")
		return nil
	})
	assert.ErrorIs(t, err, down)
	assert.ErrorContains(t, err, "db: begin")

	conflict := errors.New("serialization failure")
	b := &fakeBeginner{tx: &fakeTx{commitErr: conflict}}
	err = WithTx(context.Background(), b, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, conflict)
	assert.ErrorContains(t, err, "db: commit")
}

func TestPoolConfig(t *testing.T) {
	config, err := poolConfig("postgres://academico:pw@db.local:5432/academico?sslmode=disable", 7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, config.MaxConns)
	assert.Equal(t, ApplicationName, config.ConnConfig.RuntimeParams["application_name"])

	config, err = poolConfig("postgres://academico@db.local/academico?application_name=reportes", 0)
	require.NoError(t, err)
	assert.Equal(t, "reportes", config.ConnConfig.RuntimeParams["application_name"])
	assert.Positive(t, config.MaxConns)

	_, err = poolConfig("postgres://%zz", 0)
	assert.ErrorContains(t, err, "db: parse dsn")
}
