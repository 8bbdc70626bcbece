package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value bool
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.value
	return nil
}

type fakePgConn struct {
	queries []string
	args    []any
	row     fakeRow
	closed  bool
}

func (c *fakePgConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.queries = append(c.queries, sql)
	c.args = append(c.args, args...)
	return c.row
}

func (c *fakePgConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func TestPostgresSession_TryLock(t *testing.T) {
	conn := &fakePgConn{row: fakeRow{value: true}}
	session := &postgresSession{conn: conn}

	ok, err := session.TryLock(context.Background(), 42)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{`SELECT pg_try_advisory_lock($1)`}, conn.queries)
	assert.Equal(t, []any{int64(42)}, conn.args)
}

func TestPostgresSession_TryLockNotAcquired(t *testing.T) {
	session := &postgresSession{conn: &fakePgConn{row: fakeRow{value: false}}}

	ok, err := session.TryLock(context.Background(), 42)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresSession_TryLockError(t *testing.T) {
	session := &postgresSession{conn: &fakePgConn{row: fakeRow{err: errors.New("conn closed")}}}

	_, err := session.TryLock(context.Background(), 42)

	assert.ErrorContains(t, err, "try advisory lock 42")
}

func TestPostgresSession_Unlock(t *testing.T) {
	conn := &fakePgConn{row: fakeRow{value: true}}
	session := &postgresSession{conn: conn}

	require.NoError(t, session.Unlock(context.Background(), 42))
	assert.Equal(t, []string{`SELECT pg_advisory_unlock($1)`}, conn.queries)

	conn.row = fakeRow{value: false}
	assert.ErrorIs(t, session.Unlock(context.Background(), 42), ErrLockNotHeld)
}

func TestPostgresSession_Close(t *testing.T) {
	conn := &fakePgConn{}
	session := &postgresSession{conn: conn}

	require.NoError(t, session.Close(context.Background()))
	assert.True(t, conn.closed)
}

func TestPostgresDialer_ConnectFailure(t *testing.T) {
	guard := NewGuard(NewPostgresDialer("postgres://nobody@127.0.0.1:1/none?connect_timeout=1"), zerolog.Nop())

	res, err := guard.WithLock(context.Background(), "nightly-report", func(ctx context.Context) error {
		t.Fatal("work must not run")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonConnectFailed, res.Reason)
}

// getTestDatabaseURL returns the integration database URL.
// Skips the test if TEST_DATABASE_URL is not set.
func getTestDatabaseURL(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	_ = conn.Close(ctx)

	return dsn
}

func TestPostgresGuard_Integration(t *testing.T) {
	dsn := getTestDatabaseURL(t)
	ctx := context.Background()
	dialer := NewPostgresDialer(dsn)
	guard := NewGuard(dialer, zerolog.Nop())

	// Hold the lock from a separate session.
	holder, err := dialer.Dial(ctx)
	require.NoError(t, err)
	ok, err := holder.TryLock(ctx, Key("integration-job"))
	require.NoError(t, err)
	require.True(t, ok)

	res, err := guard.WithLock(ctx, "integration-job", func(ctx context.Context) error {
		t.Fatal("work must not run while the lock is held elsewhere")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonContended, res.Reason)

	require.NoError(t, holder.Unlock(ctx, Key("integration-job")))
	require.NoError(t, holder.Close(ctx))

	workErr := errors.New("work failed")
	res, err = guard.WithLock(ctx, "integration-job", func(ctx context.Context) error {
		return workErr
	})
	assert.ErrorIs(t, err, workErr)
	assert.True(t, res.Acquired)

	// Released despite the failure.
	res, err = guard.WithLock(ctx, "integration-job", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, res.Acquired)
}
