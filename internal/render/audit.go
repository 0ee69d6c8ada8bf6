package render

import (
	"github.com/fedbook/fedbook/internal/audit"
)

// Audit renders audit-specific output.
type Audit struct {
	*Writer
}

// NewAudit creates an Audit renderer writing to stdout.
func NewAudit() *Audit {
	return &Audit{Writer: Stdout()}
}

// Events renders a list of audit events.
func (a *Audit) Events(events []audit.Event) {
	if len(events) == 0 {
		a.Empty("No audit events found")
		return
	}

	a.Header("AUDIT LOG (%d events)", len(events))

	for _, e := range events {
		icon := statusIcon(e.Status)
		a.Println("%s [%s] %s/%s session=%s cell=%s (%dms)",
			icon,
			e.StartedAt.Format("2006-01-02 15:04:05"),
			e.Category,
			e.Operation,
			e.SessionID,
			shortID(e.CellID),
			e.DurationMs,
		)

		if e.ErrorMessage != "" && e.Status == audit.StatusError {
			a.Nested("%s", Truncate(e.ErrorMessage, 70))
		}
		if e.Detail != "" && e.Status == audit.StatusRejected {
			a.Nested("%s", Truncate(e.Detail, 70))
		}
	}
}

func statusIcon(status audit.Status) string {
	switch status {
	case audit.StatusSuccess:
		return "✓"
	case audit.StatusError:
		return "✗"
	case audit.StatusRejected:
		return "⊘"
	default:
		return "•"
	}
}
