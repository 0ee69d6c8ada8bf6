package domain

import "context"

// CellState is the mutable execution-related portion of a cell record,
// applied atomically by Store.SetCellState.
type CellState struct {
	Status          CellStatus
	Output          *string // nil leaves the field untouched
	Approved        *bool
	RejectionReason *string
}

// Store is the persistence contract for sessions and cells. The sqlite
// implementation lives in internal/store; tests substitute it freely.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	SetDatasetFolders(ctx context.Context, sessionID string, folders []string) error

	// Cells
	CreateCell(ctx context.Context, cell *Cell) error
	GetCells(ctx context.Context, sessionID string) ([]*Cell, error)
	GetCell(ctx context.Context, sessionID, cellID string) (*Cell, error)

	// UpdateCellCode replaces the source and invalidates any prior review
	// or execution result: status pending, output empty, approved false,
	// rejection reason empty.
	UpdateCellCode(ctx context.Context, sessionID, cellID, code string) error

	DeleteCell(ctx context.Context, sessionID, cellID string) error
	SetCellState(ctx context.Context, sessionID, cellID string, state CellState) error

	Close() error
}
