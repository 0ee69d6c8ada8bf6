package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Verify http.Client implements HTTPClient
var _ HTTPClient = (*http.Client)(nil)

// Gemini reviews cells through the Google Generative Language API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  HTTPClient
}

// Verify Gemini implements Reviewer
var _ Reviewer = (*Gemini)(nil)

// NewGemini creates a reviewer for the given API key and model.
func NewGemini(apiKey, model string) *Gemini {
	return NewGeminiWithClient(apiKey, model, geminiAPIURL, &http.Client{})
}

// NewGeminiWithClient allows injecting the endpoint and HTTP client.
func NewGeminiWithClient(apiKey, model, baseURL string, client HTTPClient) *Gemini {
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Review sends the full notebook context to the reviewer model and
// classifies the response. Context cancellation and deadlines apply to
// the whole call.
func (g *Gemini) Review(ctx context.Context, req Request) (Verdict, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(req)}},
		}},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal review request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Verdict{}, fmt.Errorf("build review request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("call reviewer: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, fmt.Errorf("read reviewer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("reviewer returned status %d: %s", resp.StatusCode, respData)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respData, &parsed); err != nil {
		return Verdict{}, fmt.Errorf("decode reviewer response: %w", err)
	}
	if parsed.Error != nil {
		return Verdict{}, fmt.Errorf("reviewer error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return Verdict{}, fmt.Errorf("reviewer returned no candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return ParseVerdict(text.String())
}
