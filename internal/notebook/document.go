// Package notebook maintains the on-disk notebook document mirror.
//
// The document is the nbformat v4 representation the kernel server reads.
// It is treated as a derived cache: before every execution the document is
// rebuilt from the cell store, so store and mirror cannot drift apart.
package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fedbook/fedbook/internal/domain"
)

const (
	formatMajor = 4
	formatMinor = 5
)

// Document is an nbformat v4 notebook.
type Document struct {
	Cells         []Entry        `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Entry is one notebook cell. The metadata id carries the store cell's
// identity, which is the join key between the two representations.
type Entry struct {
	CellType       string        `json:"cell_type"`
	Source         string        `json:"source"`
	Metadata       EntryMetadata `json:"metadata"`
	Outputs        []string      `json:"outputs"`
	ExecutionCount *int          `json:"execution_count"`
}

// EntryMetadata holds per-entry metadata.
type EntryMetadata struct {
	ID string `json:"id"`
}

// NewDocument returns an empty, valid notebook document.
func NewDocument() *Document {
	return &Document{
		Cells:         []Entry{},
		Metadata:      map[string]any{},
		NBFormat:      formatMajor,
		NBFormatMinor: formatMinor,
	}
}

// Load reads the document at path. A missing file is not an error: the
// first touch yields an empty valid document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse notebook: %w", err)
	}
	if doc.Cells == nil {
		doc.Cells = []Entry{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	return &doc, nil
}

// Save writes the document to path. The write goes through a temp file and
// rename so the kernel server never observes a half-written notebook.
func Save(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create notebook dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notebook: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write notebook: %w", err)
	}
	return os.Rename(tmp, path)
}

// Ensure guarantees a parseable document exists at path and returns it.
func Ensure(path string) (*Document, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := Save(path, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Rebuild derives the document from the store's cells and persists it.
// Entry order follows store order, so positional indexes handed to the
// kernel server match the document the server will read. Outputs and
// execution counts recorded by the kernel are carried over by cell id.
func Rebuild(path string, cells []*domain.Cell) (*Document, error) {
	prev, err := Load(path)
	if err != nil {
		return nil, err
	}

	prevByID := make(map[string]Entry, len(prev.Cells))
	for _, e := range prev.Cells {
		if e.Metadata.ID != "" {
			prevByID[e.Metadata.ID] = e
		}
	}

	doc := NewDocument()
	doc.Metadata = prev.Metadata
	for _, cell := range cells {
		entry := Entry{
			CellType: string(cell.Kind),
			Source:   cell.Code,
			Metadata: EntryMetadata{ID: cell.ID},
			Outputs:  []string{},
		}
		if old, ok := prevByID[cell.ID]; ok {
			entry.Outputs = old.Outputs
			entry.ExecutionCount = old.ExecutionCount
		}
		doc.Cells = append(doc.Cells, entry)
	}

	if err := Save(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// IndexOf returns the positional index of the cell with the given id, or
// -1 if the document has no such entry. The kernel server addresses cells
// by this index.
func (d *Document) IndexOf(cellID string) int {
	for i, e := range d.Cells {
		if e.Metadata.ID == cellID {
			return i
		}
	}
	return -1
}
