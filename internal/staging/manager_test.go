package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SQLitePerIdentityFiles(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(DriverSQLite, dir, "")
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	ctx := context.Background()
	a, err := mgr.Acquire(ctx, "job-a")
	require.NoError(t, err)
	b, err := mgr.Acquire(ctx, "job-b")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	_, err = os.Stat(filepath.Join(dir, "job-a.db"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "job-b.db"))
	require.NoError(t, err)

	require.NoError(t, mgr.Release("job-a"))
	require.NoError(t, mgr.Release("job-b"))
}

func TestManager_SharesHandleAcrossAcquires(t *testing.T) {
	mgr, err := NewManager(DriverSQLite, t.TempDir(), "")
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	ctx := context.Background()
	first, err := mgr.Acquire(ctx, "job-a")
	require.NoError(t, err)
	second, err := mgr.Acquire(ctx, "job-a")
	require.NoError(t, err)
	assert.Same(t, first, second)

	// First release keeps the store open for the second holder.
	require.NoError(t, mgr.Release("job-a"))
	_, err = first.GetJob(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mgr.Release("job-a"))
}

func TestManager_RejectsBadConfig(t *testing.T) {
	_, err := NewManager(DriverSQLite, "", "")
	require.Error(t, err)

	_, err = NewManager(DriverPostgres, "", "")
	require.Error(t, err)

	_, err = NewManager("mysql", "", "")
	require.Error(t, err)
}
