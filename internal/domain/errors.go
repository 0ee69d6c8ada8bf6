package domain

import (
	"errors"
	"fmt"
)

// Not-found sentinels for the two record kinds the store owns.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCellNotFound    = errors.New("cell not found")
)

// ValidationError reports a malformed request. It is raised before any
// state mutation, so a caller receiving one knows nothing changed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RejectionError carries a well-formed policy rejection. It is a business
// outcome, not a system fault: the cell is left in the rejected state with
// the reviewer's reason recorded verbatim.
type RejectionError struct {
	CellID string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("cell %s rejected by policy reviewer: %s", e.CellID, e.Reason)
}

// ProtocolError means the reviewer's response matched neither the approved
// nor the rejected grammar. It is never downgraded to an approval or a
// rejection; the raw response is kept for diagnosis.
type ProtocolError struct {
	Raw string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed reviewer verdict: %q", truncate(e.Raw, 120))
}

// ExecutionError wraps a kernel-side fault (init or execute). Stage names
// the call that failed.
type ExecutionError struct {
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("kernel %s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
