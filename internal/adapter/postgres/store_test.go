package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/guillermoBallester/colscope/internal/adapter/postgres"
	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testSchema mirrors a small slice of a cloud pricing catalog.
const testSchema = `
	CREATE TABLE "aws-ec2-proc" (
		instance_id   TEXT PRIMARY KEY,
		instance_type TEXT NOT NULL,
		price         NUMERIC(10,4) NOT NULL,
		region        TEXT NOT NULL
	);

	CREATE TABLE "aws-s3-proc" (
		storage_class TEXT NOT NULL,
		cost          NUMERIC(10,4) NOT NULL,
		notes         TEXT
	);

	INSERT INTO "aws-ec2-proc" (instance_id, instance_type, price, region)
	SELECT 'i-' || i, 't3.size' || (i % 4), (i % 10) / 10.0, 'us-east-1'
	FROM generate_series(1, 100) AS i;

	INSERT INTO "aws-s3-proc" (storage_class, cost, notes)
	SELECT 'STANDARD', (i % 10) / 10.0, CASE WHEN i <= 3 THEN 'legacy' END
	FROM generate_series(1, 100) AS i;
`

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, connStr, postgres.PoolConfig{MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return pool
}

func openSession(t *testing.T, pool *pgxpool.Pool) *postgres.Session {
	t.Helper()
	store := postgres.NewStore(pool, "public", 10*time.Second)
	sess, err := store.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess.(*postgres.Session)
}

func TestSession_ListColumns(t *testing.T) {
	sess := openSession(t, setupTestDB(t))
	ctx := context.Background()

	cols, err := sess.ListColumns(ctx, "aws-ec2-proc")
	require.NoError(t, err)
	assert.Equal(t, []string{"instance_id", "instance_type", "price", "region"}, domain.ColumnNames(cols))
	assert.Equal(t, "numeric", cols[2].DataType)
	assert.Equal(t, "aws-ec2-proc", cols[2].Table)

	_, err = sess.ListColumns(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSchemaLookup)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSession_SampleValues(t *testing.T) {
	sess := openSession(t, setupTestDB(t))
	ctx := context.Background()

	sample, err := sess.SampleValues(ctx, "aws-ec2-proc", "price", 500)
	require.NoError(t, err)
	assert.Equal(t, 10, sample.Len())
	assert.Contains(t, sample.Values, "0.5000")

	limited, err := sess.SampleValues(ctx, "aws-ec2-proc", "instance_id", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, limited.Len())

	notes, err := sess.SampleValues(ctx, "aws-s3-proc", "notes", 500)
	require.NoError(t, err)
	assert.Equal(t, 1, notes.Len(), "nulls are excluded")

	_, err = sess.SampleValues(ctx, "aws-ec2-proc", "no_such_column", 5)
	assert.ErrorIs(t, err, domain.ErrSampleFetch)
}

func TestSession_NullCounts(t *testing.T) {
	sess := openSession(t, setupTestDB(t))
	ctx := context.Background()

	stats, err := sess.NullCounts(ctx, "aws-s3-proc", []string{"storage_class", "cost", "notes"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.RowCount)
	assert.Equal(t, int64(3), stats.NonNull["notes"])
	assert.Empty(t, stats.Failed)

	ratio, ok := stats.NullRatio("notes")
	require.True(t, ok)
	assert.InDelta(t, 0.97, ratio, 1e-9)
}

func TestSession_NullCountsFallsBackPerColumn(t *testing.T) {
	sess := openSession(t, setupTestDB(t))
	ctx := context.Background()

	stats, err := sess.NullCounts(ctx, "aws-s3-proc", []string{"notes", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.RowCount)
	assert.Equal(t, int64(3), stats.NonNull["notes"])
	require.Contains(t, stats.Failed, "ghost")
	assert.ErrorIs(t, stats.Failed["ghost"], domain.ErrStatisticFetch)
}

func TestSession_CountRows(t *testing.T) {
	sess := openSession(t, setupTestDB(t))
	ctx := context.Background()

	n, err := sess.CountRows(ctx, "aws-ec2-proc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	_, err = sess.CountRows(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStatisticFetch)
}

func TestSession_SampleRows(t *testing.T) {
	sess := openSession(t, setupTestDB(t))

	rows, err := sess.SampleRows(context.Background(), "aws-ec2-proc", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0], "instance_type")
	assert.IsType(t, float64(0), rows[0]["price"])
}

func TestSession_ClosedRejectsReads(t *testing.T) {
	sess := openSession(t, setupTestDB(t))
	sess.Close()

	_, err := sess.ListColumns(context.Background(), "aws-ec2-proc")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}
