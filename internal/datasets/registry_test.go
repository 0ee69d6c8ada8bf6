package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUploads(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hospital-a", "2026"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hospital-a", "patients.csv"), []byte("id,age\n1,40\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hospital-a", "2026", "visits.csv"), []byte("id\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hospital-b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("not a folder"), 0644))

	return dir
}

func TestListFolders(t *testing.T) {
	r := NewRegistry(seedUploads(t))

	folders, err := r.List()
	require.NoError(t, err)
	require.Len(t, folders, 2)

	assert.Equal(t, "hospital-a", folders[0].Name)
	assert.Equal(t, 2, folders[0].FileCount)
	assert.Greater(t, folders[0].SizeBytes, int64(0))
	assert.Equal(t, "hospital-b", folders[1].Name)
	assert.Equal(t, 0, folders[1].FileCount)
}

func TestListMissingUploadsDir(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "never-created"))

	folders, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestExists(t *testing.T) {
	r := NewRegistry(seedUploads(t))

	assert.True(t, r.Exists("hospital-a"))
	assert.False(t, r.Exists("hospital-c"))
	assert.False(t, r.Exists("stray.txt"))
	assert.False(t, r.Exists("../outside"))
	assert.False(t, r.Exists(""))
}

func TestValidate(t *testing.T) {
	r := NewRegistry(seedUploads(t))

	assert.NoError(t, r.Validate([]string{"hospital-a", "hospital-b"}))

	err := r.Validate([]string{"hospital-a", "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestFilesPattern(t *testing.T) {
	r := NewRegistry(seedUploads(t))

	files, err := r.Files("hospital-a", "**/*.csv")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = r.Files("hospital-a", "*.csv")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
