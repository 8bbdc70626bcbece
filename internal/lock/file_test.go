package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSession_TryLockAndUnlock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	dialer := NewFileDialer(dir)
	ctx := context.Background()

	s1, err := dialer.Dial(ctx)
	require.NoError(t, err)
	s2, err := dialer.Dial(ctx)
	require.NoError(t, err)

	ok, err := s1.TryLock(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = os.Stat(filepath.Join(dir, "99.lock"))
	assert.NoError(t, err)

	ok, err = s2.TryLock(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s2.Unlock(ctx, 99), ErrLockNotHeld)
	require.NoError(t, s1.Unlock(ctx, 99))

	ok, err = s2.TryLock(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s1.Close(ctx))
	require.NoError(t, s2.Close(ctx))
}

func TestFileSession_CloseReleases(t *testing.T) {
	dialer := NewFileDialer(t.TempDir())
	ctx := context.Background()

	s1, err := dialer.Dial(ctx)
	require.NoError(t, err)
	ok, err := s1.TryLock(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s1.Close(ctx))

	s2, err := dialer.Dial(ctx)
	require.NoError(t, err)
	defer func() { _ = s2.Close(ctx) }()

	ok, err = s2.TryLock(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileGuard_ReleasesAfterWorkError(t *testing.T) {
	guard := NewGuard(NewFileDialer(t.TempDir()), zerolog.Nop())
	ctx := context.Background()

	_, err := guard.WithLock(ctx, "file-job", func(ctx context.Context) error {
		return os.ErrDeadlineExceeded
	})
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)

	res, err := guard.WithLock(ctx, "file-job", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, res.Acquired)
}
