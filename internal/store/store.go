// Package store implements the sqlite-backed session and cell store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fedbook/fedbook/internal/domain"
)

type Store struct {
	db   *sql.DB
	path string
}

// Verify Store implements domain.Store
var _ domain.Store = (*Store)(nil)

// New opens (or creates) the store database under dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "fedbook.db")
	return open(dbPath + "?_journal=WAL&_timeout=5000&_fk=1")
}

// NewMemory opens an in-memory store (for testing).
func NewMemory() (*Store, error) {
	return open("file::memory:?mode=memory&_fk=1")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The in-memory database vanishes if the pool drops its last conn.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dsn}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		notebook_name TEXT NOT NULL,
		notebook_path TEXT NOT NULL,
		dataset_folders_json TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

	CREATE TABLE IF NOT EXISTS cells (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		output TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		rejection_reason TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_cells_session ON cells(session_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Session operations

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	foldersJSON, _ := json.Marshal(sess.DatasetFolders)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, notebook_name, notebook_path, dataset_folders_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Name, sess.NotebookName, sess.NotebookPath, string(foldersJSON), sess.CreatedAt, sess.UpdatedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	var foldersJSON sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, notebook_name, notebook_path, dataset_folders_json, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Name, &sess.NotebookName, &sess.NotebookPath, &foldersJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if foldersJSON.Valid && foldersJSON.String != "" {
		json.Unmarshal([]byte(foldersJSON.String), &sess.DatasetFolders)
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, notebook_name, notebook_path, dataset_folders_json, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var sess domain.Session
		var foldersJSON sql.NullString

		if err := rows.Scan(&sess.ID, &sess.Name, &sess.NotebookName, &sess.NotebookPath, &foldersJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}

		if foldersJSON.Valid && foldersJSON.String != "" {
			json.Unmarshal([]byte(foldersJSON.String), &sess.DatasetFolders)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func (s *Store) SetDatasetFolders(ctx context.Context, sessionID string, folders []string) error {
	foldersJSON, _ := json.Marshal(folders)
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET dataset_folders_json = ?, updated_at = ? WHERE id = ?
	`, string(foldersJSON), time.Now(), sessionID)
	if err != nil {
		return err
	}
	return noRowsAs(res, domain.ErrSessionNotFound)
}

// Cell operations

func (s *Store) CreateCell(ctx context.Context, cell *domain.Cell) error {
	if err := s.sessionExists(ctx, cell.SessionID); err != nil {
		return err
	}

	// Position is append order within the session.
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM cells WHERE session_id = ?
	`, cell.SessionID).Scan(&cell.Position)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cells (id, session_id, kind, code, output, status, approved, rejection_reason, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cell.ID, cell.SessionID, cell.Kind, cell.Code, cell.Output, cell.Status,
		cell.Approved, cell.RejectionReason, cell.Position, cell.CreatedAt, cell.UpdatedAt)
	return err
}

func (s *Store) GetCells(ctx context.Context, sessionID string) ([]*domain.Cell, error) {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, kind, code, output, status, approved, rejection_reason, position, created_at, updated_at
		FROM cells WHERE session_id = ? ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []*domain.Cell
	for rows.Next() {
		cell, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

func (s *Store) GetCell(ctx context.Context, sessionID, cellID string) (*domain.Cell, error) {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, kind, code, output, status, approved, rejection_reason, position, created_at, updated_at
		FROM cells WHERE session_id = ? AND id = ?
	`, sessionID, cellID)

	cell, err := scanCell(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCellNotFound
	}
	if err != nil {
		return nil, err
	}
	return cell, nil
}

func (s *Store) UpdateCellCode(ctx context.Context, sessionID, cellID, code string) error {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return err
	}

	// Editing invalidates any prior review or execution result.
	res, err := s.db.ExecContext(ctx, `
		UPDATE cells
		SET code = ?, status = ?, output = '', approved = 0, rejection_reason = '', updated_at = ?
		WHERE session_id = ? AND id = ?
	`, code, domain.StatusPending, time.Now(), sessionID, cellID)
	if err != nil {
		return err
	}
	return noRowsAs(res, domain.ErrCellNotFound)
}

func (s *Store) DeleteCell(ctx context.Context, sessionID, cellID string) error {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cells WHERE session_id = ? AND id = ?
	`, sessionID, cellID)
	if err != nil {
		return err
	}
	return noRowsAs(res, domain.ErrCellNotFound)
}

func (s *Store) SetCellState(ctx context.Context, sessionID, cellID string, state domain.CellState) error {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return err
	}

	query := `UPDATE cells SET status = ?, updated_at = ?`
	args := []any{state.Status, time.Now()}

	if state.Output != nil {
		query += `, output = ?`
		args = append(args, *state.Output)
	}
	if state.Approved != nil {
		query += `, approved = ?`
		args = append(args, *state.Approved)
	}
	if state.RejectionReason != nil {
		query += `, rejection_reason = ?`
		args = append(args, *state.RejectionReason)
	}

	query += ` WHERE session_id = ? AND id = ?`
	args = append(args, sessionID, cellID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return noRowsAs(res, domain.ErrCellNotFound)
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCell(row rowScanner) (*domain.Cell, error) {
	var cell domain.Cell
	err := row.Scan(&cell.ID, &cell.SessionID, &cell.Kind, &cell.Code, &cell.Output,
		&cell.Status, &cell.Approved, &cell.RejectionReason, &cell.Position,
		&cell.CreatedAt, &cell.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cell, nil
}

func (s *Store) sessionExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.ErrSessionNotFound
	}
	return err
}

func noRowsAs(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
