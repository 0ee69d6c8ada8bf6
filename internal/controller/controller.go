// Package controller implements the cell lifecycle state machine.
//
// It sequences the policy gateway and the execution orchestrator per
// cell: pending -> reviewing -> executing -> executed|error, with
// pending/reviewing -> rejected on a policy verdict. Faults are local to
// the affected cell; nothing here retries automatically.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fedbook/fedbook/internal/audit"
	"github.com/fedbook/fedbook/internal/domain"
	"github.com/fedbook/fedbook/internal/kernel"
	"github.com/fedbook/fedbook/internal/metrics"
	"github.com/fedbook/fedbook/internal/notebook"
	"github.com/fedbook/fedbook/internal/policy"
)

// Controller exposes the public cell operations for training sessions.
type Controller struct {
	store    domain.Store
	reviewer policy.Reviewer
	runner   kernel.Runner
	log      *audit.Logger
	metrics  *metrics.Metrics

	reviewTimeout time.Duration
	execTimeout   time.Duration

	locks *sessionLocks
}

// Option configures the controller.
type Option func(*Controller)

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l *audit.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTimeouts overrides the review and execution timeouts.
func WithTimeouts(review, exec time.Duration) Option {
	return func(c *Controller) {
		c.reviewTimeout = review
		c.execTimeout = exec
	}
}

// New creates a controller over the given store, reviewer and runner.
func New(store domain.Store, reviewer policy.Reviewer, runner kernel.Runner, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		reviewer:      reviewer,
		runner:        runner,
		log:           audit.Global(),
		metrics:       metrics.Global(),
		reviewTimeout: 60 * time.Second,
		execTimeout:   120 * time.Second,
		locks:         newSessionLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddCell creates a cell of the given kind. Markdown cells enter the
// terminal ready state with approval implied; code cells start pending.
func (c *Controller) AddCell(ctx context.Context, sessionID string, kind domain.CellKind) (*domain.Cell, error) {
	if !kind.Valid() {
		return nil, domain.Validationf("invalid cell kind %q", kind)
	}

	lock := c.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cell := &domain.Cell{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Kind:      kind,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == domain.KindMarkdown {
		cell.Status = domain.StatusReady
		cell.Approved = true
	}

	if err := c.store.CreateCell(ctx, cell); err != nil {
		return nil, err
	}

	if err := c.syncDocument(ctx, sess); err != nil {
		return nil, err
	}

	event := c.log.Start(audit.CategoryCell, "add", sessionID, cell.ID)
	event.Detail = string(kind)
	c.log.LogSuccess(event)

	return cell, nil
}

// Cells lists the session's cells in notebook order.
func (c *Controller) Cells(ctx context.Context, sessionID string) ([]*domain.Cell, error) {
	return c.store.GetCells(ctx, sessionID)
}

// Cell returns a single cell.
func (c *Controller) Cell(ctx context.Context, sessionID, cellID string) (*domain.Cell, error) {
	return c.store.GetCell(ctx, sessionID, cellID)
}

// UpdateCellCode replaces a cell's source. Any prior verdict or output is
// invalidated: the cell returns to pending.
func (c *Controller) UpdateCellCode(ctx context.Context, sessionID, cellID, newCode string) error {
	lock := c.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := c.store.UpdateCellCode(ctx, sessionID, cellID, newCode); err != nil {
		return err
	}

	if err := c.syncDocument(ctx, sess); err != nil {
		return err
	}

	event := c.log.Start(audit.CategoryCell, "edit", sessionID, cellID)
	return c.log.LogSuccess(event)
}

// DeleteCell removes a cell from the store. The notebook document is a
// derived cache rebuilt before every execution, so it is not touched
// here.
func (c *Controller) DeleteCell(ctx context.Context, sessionID, cellID string) error {
	lock := c.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.store.DeleteCell(ctx, sessionID, cellID); err != nil {
		return err
	}

	event := c.log.Start(audit.CategoryCell, "delete", sessionID, cellID)
	return c.log.LogSuccess(event)
}

// ExecuteCell runs the full gated pipeline for one code cell: policy
// review, document synchronization, kernel init and execution. It
// returns the cell in its resulting state. Rejections come back as
// *domain.RejectionError, kernel faults as *domain.ExecutionError.
func (c *Controller) ExecuteCell(ctx context.Context, sessionID, cellID string) (*domain.Cell, error) {
	lock := c.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cells, err := c.store.GetCells(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var target *domain.Cell
	for _, cell := range cells {
		if cell.ID == cellID {
			target = cell
			break
		}
	}

	// Request validation: these fail before any state mutation.
	if target == nil {
		return nil, domain.ErrCellNotFound
	}
	if target.Kind != domain.KindCode {
		return nil, domain.Validationf("only code cells can be executed")
	}
	if strings.TrimSpace(target.Code) == "" {
		return nil, domain.Validationf("cannot execute empty code")
	}

	if err := c.setStatus(ctx, sessionID, cellID, domain.StatusReviewing); err != nil {
		return nil, err
	}

	verdict, err := c.review(ctx, sess, cells, target)
	if err != nil {
		// Review failed as a system fault (protocol violation, transport
		// error, timeout). The cell lands in the error state, never in
		// approved or rejected.
		c.failCell(ctx, sessionID, cellID, fmt.Sprintf("policy review failed: %v", err))
		return nil, fmt.Errorf("review cell %s: %w", cellID, err)
	}

	if !verdict.Approved {
		reason := verdict.Reason
		approved := false
		if err := c.store.SetCellState(ctx, sessionID, cellID, domain.CellState{
			Status:          domain.StatusRejected,
			Approved:        &approved,
			RejectionReason: &reason,
		}); err != nil {
			return nil, err
		}

		event := c.log.Start(audit.CategoryPolicy, "review", sessionID, cellID)
		c.log.LogRejected(event, reason)

		cell, _ := c.store.GetCell(ctx, sessionID, cellID)
		return cell, &domain.RejectionError{CellID: cellID, Reason: reason}
	}

	if err := c.setStatus(ctx, sessionID, cellID, domain.StatusExecuting); err != nil {
		return nil, err
	}

	output, err := c.execute(ctx, sess, cells, target)
	if err != nil {
		c.failCell(ctx, sessionID, cellID, err.Error())
		event := c.log.Start(audit.CategoryKernel, "execute", sessionID, cellID)
		c.log.LogError(event, err)
		return nil, err
	}

	approved := true
	if err := c.store.SetCellState(ctx, sessionID, cellID, domain.CellState{
		Status:   domain.StatusExecuted,
		Output:   &output,
		Approved: &approved,
	}); err != nil {
		return nil, err
	}

	event := c.log.Start(audit.CategoryKernel, "execute", sessionID, cellID)
	c.log.LogSuccess(event)

	return c.store.GetCell(ctx, sessionID, cellID)
}

// ReviewResult is the outcome of one cell in a batch review.
type ReviewResult struct {
	CellID   string `json:"cell_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
	Err      string `json:"error,omitempty"`
}

// ReviewCells reviews several cells in one call without executing them.
// Approved cells move to the approved state, rejected ones to rejected.
// A reviewer fault for one cell is recorded on its result and leaves
// that cell's state untouched.
func (c *Controller) ReviewCells(ctx context.Context, sessionID string, cellIDs []string) ([]ReviewResult, error) {
	lock := c.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cells, err := c.store.GetCells(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Cell, len(cells))
	for _, cell := range cells {
		byID[cell.ID] = cell
	}

	results := make([]ReviewResult, 0, len(cellIDs))
	for _, id := range cellIDs {
		target, ok := byID[id]
		if !ok {
			results = append(results, ReviewResult{CellID: id, Reason: "cell not found"})
			continue
		}
		if target.Kind != domain.KindCode {
			results = append(results, ReviewResult{CellID: id, Reason: "only code cells are reviewed"})
			continue
		}

		verdict, err := c.review(ctx, sess, cells, target)
		if err != nil {
			results = append(results, ReviewResult{CellID: id, Err: err.Error()})
			continue
		}

		approved := verdict.Approved
		state := domain.CellState{Approved: &approved}
		reason := verdict.Reason
		if verdict.Approved {
			state.Status = domain.StatusApproved
			empty := ""
			state.RejectionReason = &empty
		} else {
			state.Status = domain.StatusRejected
			state.RejectionReason = &reason
		}
		if err := c.store.SetCellState(ctx, sessionID, id, state); err != nil {
			results = append(results, ReviewResult{CellID: id, Err: err.Error()})
			continue
		}

		results = append(results, ReviewResult{CellID: id, Approved: verdict.Approved, Reason: reason})
	}

	return results, nil
}

// ShutdownKernel stops the session's kernel. Safe to call when no kernel
// was ever started; never changes cell state.
func (c *Controller) ShutdownKernel(ctx context.Context, sessionID string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()

	if err := c.runner.Shutdown(sctx, sess.NotebookPath); err != nil {
		event := c.log.Start(audit.CategoryKernel, "shutdown", sessionID, "")
		c.log.LogError(event, err)
		return fmt.Errorf("shutdown kernel for session %s: %w", sessionID, err)
	}

	c.metrics.RecordKernelShutdown()
	event := c.log.Start(audit.CategoryKernel, "shutdown", sessionID, "")
	return c.log.LogSuccess(event)
}

// review sends one cell to the policy gateway with full sibling context.
func (c *Controller) review(ctx context.Context, sess *domain.Session, cells []*domain.Cell, target *domain.Cell) (policy.Verdict, error) {
	req := policy.Request{
		Target:         policy.CellRef{ID: target.ID, Code: target.Code},
		DatasetFolders: sess.DatasetFolders,
	}
	for _, cell := range cells {
		if cell.Kind == domain.KindCode {
			req.Cells = append(req.Cells, policy.CellRef{ID: cell.ID, Code: cell.Code})
		}
	}

	rctx, cancel := context.WithTimeout(ctx, c.reviewTimeout)
	defer cancel()

	started := time.Now()
	verdict, err := c.reviewer.Review(rctx, req)
	if err != nil {
		var protoErr *domain.ProtocolError
		if errors.As(err, &protoErr) {
			c.metrics.RecordProtocolError()
		}
		return policy.Verdict{}, err
	}

	c.metrics.RecordReview(verdict.Approved, time.Since(started).Milliseconds())
	return verdict, nil
}

// execute synchronizes the notebook document, resolves the target's
// position and runs it on the kernel.
func (c *Controller) execute(ctx context.Context, sess *domain.Session, cells []*domain.Cell, target *domain.Cell) (string, error) {
	doc, err := notebook.Rebuild(sess.NotebookPath, cells)
	if err != nil {
		return "", &domain.ExecutionError{Stage: "sync", Err: err}
	}

	index := doc.IndexOf(target.ID)
	if index < 0 {
		return "", &domain.ExecutionError{Stage: "sync", Err: fmt.Errorf("cell %s missing from notebook document", target.ID)}
	}

	ectx, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()

	if err := c.runner.EnsureKernel(ectx, sess.NotebookPath); err != nil {
		c.metrics.RecordKernelInit(false)
		return "", &domain.ExecutionError{Stage: "init", Err: err}
	}
	c.metrics.RecordKernelInit(true)

	started := time.Now()
	outputs, err := c.runner.ExecuteAt(ectx, sess.NotebookPath, index)
	if err != nil {
		c.metrics.RecordExecution(false, time.Since(started).Milliseconds())
		return "", &domain.ExecutionError{Stage: "execute", Err: err}
	}
	c.metrics.RecordExecution(true, time.Since(started).Milliseconds())

	return kernel.JoinOutputs(outputs), nil
}

// syncDocument rebuilds the notebook document from the store.
func (c *Controller) syncDocument(ctx context.Context, sess *domain.Session) error {
	cells, err := c.store.GetCells(ctx, sess.ID)
	if err != nil {
		return err
	}
	if _, err := notebook.Rebuild(sess.NotebookPath, cells); err != nil {
		return fmt.Errorf("sync notebook document: %w", err)
	}
	return nil
}

func (c *Controller) setStatus(ctx context.Context, sessionID, cellID string, status domain.CellStatus) error {
	return c.store.SetCellState(ctx, sessionID, cellID, domain.CellState{Status: status})
}

// failCell records a system fault on the cell: error state, diagnostic
// text as output.
func (c *Controller) failCell(ctx context.Context, sessionID, cellID, diagnostic string) {
	approved := false
	_ = c.store.SetCellState(ctx, sessionID, cellID, domain.CellState{
		Status:   domain.StatusError,
		Output:   &diagnostic,
		Approved: &approved,
	})
}
