// Package kernel talks to the external execution process.
//
// The kernel server owns one stateful Python kernel per notebook document
// path and addresses cells by positional index inside that document, so
// callers must synchronize the document before resolving an index.
package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Runner is the execution contract the lifecycle controller depends on.
type Runner interface {
	// EnsureKernel starts the kernel for the document if needed.
	// Idempotent: an already-running kernel is a success outcome.
	EnsureKernel(ctx context.Context, notebookPath string) error

	// ExecuteAt runs the cell at the given document position and returns
	// the raw output fragments.
	ExecuteAt(ctx context.Context, notebookPath string, index int) ([]string, error)

	// Shutdown stops the kernel bound to the document. Calling it when no
	// kernel was ever started is a no-op success.
	Shutdown(ctx context.Context, notebookPath string) error
}

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is the HTTP implementation of Runner.
type Client struct {
	baseURL string
	client  HTTPClient
}

// Verify Client implements Runner
var _ Runner = (*Client)(nil)

// NewClient creates a kernel client for the given server base URL.
func NewClient(baseURL string) *Client {
	return NewClientWith(baseURL, &http.Client{})
}

// NewClientWith allows injecting the HTTP client.
func NewClientWith(baseURL string, client HTTPClient) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type kernelRequest struct {
	NotebookPath string `json:"notebook_path"`
	CellIndex    *int   `json:"cell_index,omitempty"`
}

type kernelResponse struct {
	Message string   `json:"message"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error"`
}

func (c *Client) EnsureKernel(ctx context.Context, notebookPath string) error {
	status, resp, err := c.post(ctx, "/init_kernel", kernelRequest{NotebookPath: notebookPath})
	if err != nil {
		return fmt.Errorf("init kernel: %w", err)
	}

	// 200 covers both fresh and already-running kernels; some server
	// builds answer 409 for the latter. Both are success outcomes.
	if status == http.StatusOK || status == http.StatusConflict {
		return nil
	}
	return fmt.Errorf("init kernel: server returned status %d: %s", status, serverError(resp))
}

func (c *Client) ExecuteAt(ctx context.Context, notebookPath string, index int) ([]string, error) {
	status, resp, err := c.post(ctx, "/execute_cell", kernelRequest{NotebookPath: notebookPath, CellIndex: &index})
	if err != nil {
		return nil, fmt.Errorf("execute cell: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("execute cell: %s", serverError(resp))
	}
	return resp.Outputs, nil
}

func (c *Client) Shutdown(ctx context.Context, notebookPath string) error {
	status, resp, err := c.post(ctx, "/shutdown_kernel", kernelRequest{NotebookPath: notebookPath})
	if err != nil {
		return fmt.Errorf("shutdown kernel: %w", err)
	}

	// A kernel that was never started is benign.
	if status == http.StatusOK || status == http.StatusBadRequest || status == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("shutdown kernel: server returned status %d: %s", status, serverError(resp))
}

func (c *Client) post(ctx context.Context, path string, body kernelRequest) (int, *kernelResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	var parsed kernelResponse
	if len(respData) > 0 {
		if err := json.Unmarshal(respData, &parsed); err != nil {
			parsed.Error = strings.TrimSpace(string(respData))
		}
	}
	return resp.StatusCode, &parsed, nil
}

// JoinOutputs flattens the kernel's output fragments into the single
// string recorded on the cell.
func JoinOutputs(outputs []string) string {
	return strings.Join(outputs, "\n")
}

func serverError(resp *kernelResponse) string {
	if resp != nil && resp.Error != "" {
		return resp.Error
	}
	return "unknown error"
}
