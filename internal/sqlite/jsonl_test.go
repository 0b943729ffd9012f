package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestWriteReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, writeJSONL(path, nil))

	records, err := readJSONL(path)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\nnot json\n\n{\"b\":2}\n"), 0o644))
	records, err = readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, records, 2, "malformed and empty lines are skipped")
}

func TestDumpRestore(t *testing.T) {
	b := attachedBackend(t)
	f := newFixture(t, b)
	planID := f.plan(t, b, "Release")
	caseID := f.testCase(t, b, "install")
	_, err := mustTable(t, b, types.TableLinks).Set("", &types.Link{LinkType: types.LinkPlanCase, FromID: planID, ToID: caseID, SortKey: 10})
	require.NoError(t, err)

	users := mustTable(t, b, types.TableUsers)
	u, err := users.Get(f.userID)
	require.NoError(t, err)
	user := u.(*types.User)
	user.PasswordHash = "hash"
	user.Permissions = []string{types.PermAddPlan}
	_, err = users.Set(f.userID, user)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, b.Dump(dir))
	for _, name := range types.StandardTableNames {
		_, err := os.Stat(filepath.Join(dir, name+".jsonl"))
		assert.NoError(t, err, name)
	}

	// Append a malformed line and a record with an unknown field.
	tagsPath := filepath.Join(dir, "tags.jsonl")
	require.NoError(t, os.WriteFile(tagsPath,
		[]byte("garbage\n{\"tag_id\":\"t1\",\"name\":\"restored\",\"color\":\"red\"}\n"), 0o644))

	other := attachedBackend(t)
	require.NoError(t, other.Restore(dir))

	got, err := mustTable(t, other, types.TablePlans).Get(planID)
	require.NoError(t, err)
	assert.Equal(t, "Release", got.(*types.TestPlan).Name)

	got, err = mustTable(t, other, types.TableUsers).Get(f.userID)
	require.NoError(t, err)
	assert.Equal(t, "hash", got.(*types.User).PasswordHash)
	assert.Equal(t, []string{types.PermAddPlan}, got.(*types.User).Permissions)

	links, err := mustTable(t, other, types.TableLinks).Fetch(types.Filter{"from_id": planID})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 10, links[0].(*types.Link).SortKey)

	tag, err := mustTable(t, other, types.TableTags).Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "restored", tag.(*types.Tag).Name)

	planTypes, err := mustTable(t, other, types.TablePlanTypes).Fetch(nil)
	require.NoError(t, err)
	assert.Len(t, planTypes, len(builtInPlanTypes), "restore replaces seeded plan types with the dumped ones")
}

func TestRestore_MissingFilesLoadEmpty(t *testing.T) {
	b := attachedBackend(t)
	_, err := mustTable(t, b, types.TableTags).Set("", &types.Tag{Name: "old"})
	require.NoError(t, err)

	require.NoError(t, b.Restore(t.TempDir()))

	tags, err := mustTable(t, b, types.TableTags).Fetch(nil)
	require.NoError(t, err)
	assert.Empty(t, tags)

	planTypes, err := mustTable(t, b, types.TablePlanTypes).Fetch(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, planTypes, "plan types are reseeded after an empty restore")
}

func TestDump_Detached(t *testing.T) {
	b := NewBackend()
	err := b.Dump(t.TempDir())
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
	assert.True(t, strings.Contains(err.Error(), "detached"))
}
