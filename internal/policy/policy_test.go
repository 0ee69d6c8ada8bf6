package policy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedbook/fedbook/internal/domain"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		approved bool
		reason   string
		wantErr  bool
	}{
		{"plain approved", "Approved", true, "", false},
		{"approved lowercase", "approved", true, "", false},
		{"approved with trailing text", "Approved. The cell is fine.", true, "", false},
		{"approved with whitespace", "  \nApproved\n", true, "", false},
		{"rejected with reason", "Rejected: writes into the provider folder", false, "writes into the provider folder", false},
		{"rejected uppercase", "REJECTED: plotting provider data", false, "plotting provider data", false},
		{"rejected empty reason", "Rejected:", false, "no reason provided", false},
		{"rejected without colon", "Rejected because it plots data", false, "", true},
		{"free text", "The cell looks suspicious to me", false, "", true},
		{"empty", "", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				var protoErr *domain.ProtocolError
				require.ErrorAs(t, err, &protoErr)
				assert.Equal(t, tt.raw, protoErr.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.approved, v.Approved)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestBuildPromptIncludesContext(t *testing.T) {
	prompt := buildPrompt(Request{
		Cells: []CellRef{
			{ID: "c1", Code: "import pandas as pd"},
			{ID: "c2", Code: "df = pd.read_csv('provider-a/x.csv')"},
		},
		Target:         CellRef{ID: "c2", Code: "df = pd.read_csv('provider-a/x.csv')"},
		DatasetFolders: []string{"provider-a", "provider-b"},
	})

	assert.Contains(t, prompt, "provider-a, provider-b")
	assert.Contains(t, prompt, "Cell 1 (c1)")
	assert.Contains(t, prompt, "Cell 2 (c2)")
	assert.Contains(t, prompt, "Target cell (c2)")
	assert.Contains(t, prompt, "import pandas as pd")
	// The policy rules themselves must ride along on every request.
	assert.Contains(t, prompt, "visualizing or plotting")
	assert.Contains(t, prompt, "Rejected: <reason>")
}

func TestBuildPromptNoFolders(t *testing.T) {
	prompt := buildPrompt(Request{
		Target: CellRef{ID: "c1", Code: "print(1)"},
	})
	assert.Contains(t, prompt, "Data provider folders: none")
}

func geminiServer(t *testing.T, verdictText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-1.5-pro:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "Target cell")

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": verdictText}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGeminiReviewApproved(t *testing.T) {
	server := geminiServer(t, "Approved")
	defer server.Close()

	g := NewGeminiWithClient("test-key", "gemini-1.5-pro", server.URL, server.Client())
	v, err := g.Review(context.Background(), Request{
		Cells:  []CellRef{{ID: "c1", Code: "import pandas as pd"}},
		Target: CellRef{ID: "c1", Code: "import pandas as pd"},
	})
	require.NoError(t, err)
	assert.True(t, v.Approved)
}

func TestGeminiReviewRejected(t *testing.T) {
	server := geminiServer(t, "Rejected: saving data back to a provider folder")
	defer server.Close()

	g := NewGeminiWithClient("test-key", "gemini-1.5-pro", server.URL, server.Client())
	v, err := g.Review(context.Background(), Request{
		Target:         CellRef{ID: "c1", Code: "df.to_csv('provider-folder/out.csv')"},
		DatasetFolders: []string{"provider-folder"},
	})
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Equal(t, "saving data back to a provider folder", v.Reason)
}

func TestGeminiReviewMalformedVerdict(t *testing.T) {
	server := geminiServer(t, "I am not sure about this one")
	defer server.Close()

	g := NewGeminiWithClient("test-key", "gemini-1.5-pro", server.URL, server.Client())
	_, err := g.Review(context.Background(), Request{
		Target: CellRef{ID: "c1", Code: "print(1)"},
	})

	var protoErr *domain.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestGeminiReviewServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewGeminiWithClient("test-key", "gemini-1.5-pro", server.URL, server.Client())
	_, err := g.Review(context.Background(), Request{Target: CellRef{ID: "c1", Code: "print(1)"}})

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "429"))

	// Transport errors are not protocol errors.
	var protoErr *domain.ProtocolError
	assert.False(t, errors.As(err, &protoErr))
}
