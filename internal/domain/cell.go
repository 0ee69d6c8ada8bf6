// Package domain defines the core entities of the federated notebook:
// training sessions, cells, and the store contract they persist through.
package domain

import "time"

// CellKind distinguishes executable code cells from narrative markdown.
type CellKind string

const (
	KindCode     CellKind = "code"
	KindMarkdown CellKind = "markdown"
)

// Valid reports whether the kind is one of the two supported values.
func (k CellKind) Valid() bool {
	return k == KindCode || k == KindMarkdown
}

// CellStatus is the lifecycle state of a cell.
type CellStatus string

const (
	// StatusPending is the initial state of a code cell and the state any
	// edit resets to. A pending cell has no valid review verdict.
	StatusPending CellStatus = "pending"

	// StatusReviewing means the cell is in flight to the policy reviewer.
	StatusReviewing CellStatus = "reviewing"

	// StatusExecuting means the cell passed review and is running on the
	// kernel.
	StatusExecuting CellStatus = "executing"

	// StatusExecuted is the success terminal state for this code revision.
	StatusExecuted CellStatus = "executed"

	// StatusError means kernel init or execution failed; the output field
	// holds the diagnostic.
	StatusError CellStatus = "error"

	// StatusRejected means the policy reviewer refused the cell; the
	// rejection reason field holds the verdict text.
	StatusRejected CellStatus = "rejected"

	// StatusApproved means the cell passed a batch review but has not been
	// executed yet.
	StatusApproved CellStatus = "approved"

	// StatusReady is the terminal state of markdown cells, which never
	// enter the review or execution path.
	StatusReady CellStatus = "ready"
)

// Cell is one unit of code or narrative text in a training session.
// The ID is assigned once at creation and is the join key between the
// store record and the mirrored notebook document entry.
type Cell struct {
	ID              string     `json:"cell_id"`
	SessionID       string     `json:"session_id"`
	Kind            CellKind   `json:"kind"`
	Code            string     `json:"code"`
	Output          string     `json:"output"`
	Status          CellStatus `json:"status"`
	Approved        bool       `json:"approved"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Position        int        `json:"position"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Session is one model trainer's notebook workspace: an ordered set of
// cells plus the on-disk notebook document they mirror into.
type Session struct {
	ID             string    `json:"session_id"`
	Name           string    `json:"name"`
	NotebookName   string    `json:"notebook_name"`
	NotebookPath   string    `json:"notebook_path"`
	DatasetFolders []string  `json:"dataset_folders,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
