package notebook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedbook/fedbook/internal/domain"
)

func TestLoadMissingFile(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "nope.ipynb"))
	require.NoError(t, err)
	assert.Empty(t, doc.Cells)
	assert.Equal(t, 4, doc.NBFormat)
}

func TestEnsureCreatesValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.ipynb")

	_, err := Ensure(path)
	require.NoError(t, err)

	// The file must now exist and be parseable.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, doc.NBFormat)
	assert.NotNil(t, doc.Cells)
}

func TestRebuildMatchesStoreOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.ipynb")

	cells := []*domain.Cell{
		{ID: "a", Kind: domain.KindCode, Code: "import pandas as pd"},
		{ID: "b", Kind: domain.KindMarkdown, Code: "# Notes"},
		{ID: "c", Kind: domain.KindCode, Code: "print(1)"},
	}

	doc, err := Rebuild(path, cells)
	require.NoError(t, err)
	require.Len(t, doc.Cells, 3)

	assert.Equal(t, "a", doc.Cells[0].Metadata.ID)
	assert.Equal(t, "code", doc.Cells[0].CellType)
	assert.Equal(t, "markdown", doc.Cells[1].CellType)
	assert.Equal(t, 0, doc.IndexOf("a"))
	assert.Equal(t, 2, doc.IndexOf("c"))
	assert.Equal(t, -1, doc.IndexOf("zzz"))
}

func TestRebuildCarriesKernelResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.ipynb")

	count := 3
	seed := NewDocument()
	seed.Cells = []Entry{{
		CellType:       "code",
		Source:         "old source",
		Metadata:       EntryMetadata{ID: "a"},
		Outputs:        []string{"42"},
		ExecutionCount: &count,
	}}
	require.NoError(t, Save(path, seed))

	doc, err := Rebuild(path, []*domain.Cell{
		{ID: "a", Kind: domain.KindCode, Code: "new source"},
		{ID: "b", Kind: domain.KindCode, Code: "fresh"},
	})
	require.NoError(t, err)

	// Source comes from the store; kernel-side results carry over.
	assert.Equal(t, "new source", doc.Cells[0].Source)
	assert.Equal(t, []string{"42"}, doc.Cells[0].Outputs)
	require.NotNil(t, doc.Cells[0].ExecutionCount)
	assert.Equal(t, 3, *doc.Cells[0].ExecutionCount)

	assert.Empty(t, doc.Cells[1].Outputs)
	assert.Nil(t, doc.Cells[1].ExecutionCount)
}

func TestRebuildDropsDeletedCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.ipynb")

	_, err := Rebuild(path, []*domain.Cell{
		{ID: "a", Kind: domain.KindCode, Code: "x = 1"},
		{ID: "b", Kind: domain.KindCode, Code: "y = 2"},
	})
	require.NoError(t, err)

	doc, err := Rebuild(path, []*domain.Cell{
		{ID: "b", Kind: domain.KindCode, Code: "y = 2"},
	})
	require.NoError(t, err)

	require.Len(t, doc.Cells, 1)
	assert.Equal(t, "b", doc.Cells[0].Metadata.ID)
	assert.Equal(t, 0, doc.IndexOf("b"))
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.ipynb")

	doc, err := Rebuild(path, []*domain.Cell{
		{ID: "a", Kind: domain.KindCode, Code: "x = 1"},
	})
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Cells, got.Cells)
	assert.Equal(t, 4, got.NBFormat)
	assert.Equal(t, 5, got.NBFormatMinor)
}
