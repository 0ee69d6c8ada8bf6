// Package policy gates cell execution behind an external code reviewer.
//
// The reviewer is an opaque, non-deterministic oracle: it receives the
// full notebook context plus the provider folder names and answers with a
// fixed textual protocol. This package classifies that answer into one of
// exactly three outcomes: approved, rejected with a reason, or a protocol
// error. A malformed answer is never downgraded to an approval or a
// rejection.
package policy

import (
	"context"
	"strings"

	"github.com/fedbook/fedbook/internal/domain"
)

// CellRef is the identity and source of one code cell as sent for review.
type CellRef struct {
	ID   string
	Code string
}

// Request carries one review: the target cell, every sibling code cell
// (so the reviewer can reason about cross-cell data flow), and the
// provider-owned dataset folder names the policy protects.
type Request struct {
	Cells          []CellRef
	Target         CellRef
	DatasetFolders []string
}

// Verdict is a well-formed reviewer answer.
type Verdict struct {
	Approved bool
	Reason   string
}

// Reviewer submits a cell for policy review. Implementations must treat
// the reviewer's output as untrusted: only responses matching the verdict
// grammar produce a Verdict, everything else returns an error.
type Reviewer interface {
	Review(ctx context.Context, req Request) (Verdict, error)
}

// ParseVerdict classifies a raw reviewer response.
//
// Grammar: a response beginning with "approved" (case-insensitive) is an
// approval; a response beginning with "rejected:" is a rejection whose
// reason is the remainder of the text; any other shape is a
// domain.ProtocolError.
func ParseVerdict(raw string) (Verdict, error) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "approved"):
		return Verdict{Approved: true}, nil
	case strings.HasPrefix(lower, "rejected:"):
		reason := strings.TrimSpace(trimmed[len("rejected:"):])
		if reason == "" {
			reason = "no reason provided"
		}
		return Verdict{Approved: false, Reason: reason}, nil
	default:
		return Verdict{}, &domain.ProtocolError{Raw: raw}
	}
}
