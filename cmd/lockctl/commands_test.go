package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneutral-org/ops-worker/internal/lock"
)

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOCKCTL_DSN", "")
	t.Setenv("DATABASE_URL", "")

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestKeyCmd(t *testing.T) {
	stdout, _, err := executeCommand(t, "key", "log-retention")
	require.NoError(t, err)
	assert.Equal(t, "-2967477464262673770\n", stdout)
}

func TestKeyCmd_RequiresLabel(t *testing.T) {
	_, _, err := executeCommand(t, "key")
	assert.Error(t, err)
}

func TestRunCmd_RunsCommandUnderLock(t *testing.T) {
	dir := t.TempDir()

	stdout, stderr, err := executeCommand(t, "--backend", "file", "--dsn", dir,
		"run", "nightly", "--", "sh", "-c", "echo ran")
	require.NoError(t, err)
	assert.Equal(t, "ran\n", stdout)
	assert.Empty(t, stderr)
}

func TestRunCmd_PropagatesExitCode(t *testing.T) {
	dir := t.TempDir()

	_, _, err := executeCommand(t, "--backend", "file", "--dsn", dir,
		"run", "nightly", "--", "sh", "-c", "exit 3")

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestRunCmd_SkipsWhenHeldElsewhere(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	holder, err := lock.NewFileDialer(dir).Dial(ctx)
	require.NoError(t, err)
	defer holder.Close(ctx)

	ok, err := holder.TryLock(ctx, lock.Key("nightly"))
	require.NoError(t, err)
	require.True(t, ok)

	stdout, stderr, err := executeCommand(t, "--backend", "file", "--dsn", dir,
		"run", "nightly", "--", "sh", "-c", "echo ran")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `lock "nightly" not acquired (contended)`)
}

func TestRunCmd_SkipsWhenUnconfigured(t *testing.T) {
	stdout, stderr, err := executeCommand(t, "run", "nightly", "--", "sh", "-c", "echo ran")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "(unconfigured)")
}

func TestRunCmd_RequiresCommandAfterDash(t *testing.T) {
	_, _, err := executeCommand(t, "--backend", "file", "--dsn", t.TempDir(), "run", "nightly", "sh")
	assert.Error(t, err)
}

func TestRunCmd_UnknownBackend(t *testing.T) {
	_, _, err := executeCommand(t, "--backend", "etcd", "--dsn", "x", "run", "nightly", "--", "true")
	assert.ErrorIs(t, err, lock.ErrUnknownBackend)
}

func TestRunCmd_SkipExitCode(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	holder, err := lock.NewFileDialer(dir).Dial(ctx)
	require.NoError(t, err)
	defer holder.Close(ctx)

	ok, err := holder.TryLock(ctx, lock.Key("nightly"))
	require.NoError(t, err)
	require.True(t, ok)

	_, stderr, err := executeCommand(t, "--backend", "file", "--dsn", dir,
		"run", "--skip-exit-code", "75", "nightly", "--", "sh", "-c", "echo ran")

	var skipped *skippedError
	require.True(t, errors.As(err, &skipped))
	assert.Equal(t, 75, skipped.ExitCode())
	assert.Equal(t, lock.ReasonContended, skipped.reason)
	assert.Contains(t, stderr, "skipped:")
}

func TestRunCmd_SkipExitCodeIgnoredWhenAcquired(t *testing.T) {
	stdout, _, err := executeCommand(t, "--backend", "file", "--dsn", t.TempDir(),
		"run", "--skip-exit-code", "75", "nightly", "--", "sh", "-c", "echo ran")
	require.NoError(t, err)
	assert.Equal(t, "ran\n", stdout)
}
