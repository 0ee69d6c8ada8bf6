// Package session manages federated training sessions and their
// notebook files.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fedbook/fedbook/internal/audit"
	"github.com/fedbook/fedbook/internal/domain"
	"github.com/fedbook/fedbook/internal/notebook"
)

// Manager creates and looks up training sessions. Each session owns one
// notebook file named <session_id>_<notebook_name>.ipynb under the
// notebooks directory.
type Manager struct {
	store        domain.Store
	notebooksDir string
	log          *audit.Logger
}

// Option configures the manager.
type Option func(*Manager)

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l *audit.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a session manager storing notebooks under
// notebooksDir.
func NewManager(store domain.Store, notebooksDir string, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		notebooksDir: notebooksDir,
		log:          audit.Global(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new training session and writes its empty notebook
// file.
func (m *Manager) Create(ctx context.Context, name, notebookName string) (*domain.Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("session name cannot be empty")
	}

	notebookName = sanitizeNotebookName(notebookName)
	id := ulid.Make().String()

	now := time.Now()
	sess := &domain.Session{
		ID:           id,
		Name:         name,
		NotebookName: notebookName,
		NotebookPath: filepath.Join(m.notebooksDir, fmt.Sprintf("%s_%s", id, notebookName)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if _, err := notebook.Ensure(sess.NotebookPath); err != nil {
		return nil, fmt.Errorf("create notebook file: %w", err)
	}

	event := m.log.Start(audit.CategorySession, "create", sess.ID, "")
	event.Detail = name
	m.log.LogSuccess(event)

	return sess, nil
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Session, error) {
	return m.store.GetSession(ctx, id)
}

// List returns the most recent sessions, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return m.store.ListSessions(ctx, limit)
}

// SetDatasetFolders records which provider folders the session's
// reviewer treats as protected.
func (m *Manager) SetDatasetFolders(ctx context.Context, sessionID string, folders []string) error {
	if err := m.store.SetDatasetFolders(ctx, sessionID, folders); err != nil {
		return err
	}

	event := m.log.Start(audit.CategorySession, "set_folders", sessionID, "")
	event.Detail = strings.Join(folders, ",")
	return m.log.LogSuccess(event)
}

// sanitizeNotebookName strips any path components and guarantees the
// .ipynb extension. An empty name falls back to notebook.ipynb.
func sanitizeNotebookName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "notebook"
	}
	if !strings.HasSuffix(name, ".ipynb") {
		name += ".ipynb"
	}
	return name
}
