package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// attachedBackend returns a backend attached to a fresh temp dir.
func attachedBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func mustTable(t *testing.T, b *Backend, name string) types.Table {
	t.Helper()
	tbl, err := b.GetTable(name)
	require.NoError(t, err)
	return tbl
}

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	require.NoError(t, b.Attach(cfg))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dir, DBFile))
	assert.NoError(t, err, "nitrate.db should exist")
	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "mysql"}), types.ErrBackendUnknown)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "second Detach should be a no-op")

	_, err := b.GetTable(types.TableCases)
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
}

func TestBackend_TableUseAfterDetach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	tags := mustTable(t, b, types.TableTags)
	require.NoError(t, b.Detach())

	_, err := tags.Set("", &types.Tag{Name: "smoke"})
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
	_, err = tags.Fetch(nil)
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
}

func TestBackend_GetTable(t *testing.T) {
	b := attachedBackend(t)

	for _, name := range types.StandardTableNames {
		tbl, err := b.GetTable(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, tbl, name)
	}

	_, err := b.GetTable("unknown")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestBackend_ReattachKeepsData(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	id, err := mustTable(t, b, types.TableTags).Set("", &types.Tag{Name: "nightly"})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(cfg))
	defer b2.Detach()

	got, err := mustTable(t, b2, types.TableTags).Get(id)
	require.NoError(t, err)
	assert.Equal(t, "nightly", got.(*types.Tag).Name)

	planTypes, err := mustTable(t, b2, types.TablePlanTypes).Fetch(nil)
	require.NoError(t, err)
	assert.Len(t, planTypes, len(builtInPlanTypes), "plan types are seeded once")
}
