package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ResponsesGenerator calls the OpenAI /v1/responses endpoint with the
// web_search tool enabled, so the model can verify manufacturer specs
// against live sources and cite them.
type ResponsesGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewResponsesGenerator builds a web-search-capable generator.
func NewResponsesGenerator(baseURL, apiKey, model string, timeout time.Duration) *ResponsesGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &ResponsesGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateWithSearch implements SearchTextGenerator.
func (g *ResponsesGenerator) GenerateWithSearch(ctx context.Context, req Request) (SearchResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = g.model
	}
	if model == "" {
		return SearchResult{}, fmt.Errorf("responses generation model required")
	}

	input := make([]respMessage, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		input = append(input, respMessage{Role: "system", Content: req.SystemPrompt})
	}
	input = append(input, respMessage{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(respRequest{
		Model: model,
		Input: input,
		Tools: []respTool{{Type: "web_search"}},
	})
	if err != nil {
		return SearchResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return SearchResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return SearchResult{}, fmt.Errorf("responses request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return SearchResult{}, fmt.Errorf("responses api error: %s", errResp.Error.Message)
		}
		return SearchResult{}, fmt.Errorf("responses api error: %s", resp.Status)
	}

	var parsed respResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SearchResult{}, fmt.Errorf("responses decode: %w", err)
	}

	var text strings.Builder
	var sources []string
	seen := make(map[string]struct{})
	for _, item := range parsed.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type != "output_text" {
				continue
			}
			text.WriteString(part.Text)
			for _, ann := range part.Annotations {
				if ann.Type != "url_citation" || strings.TrimSpace(ann.URL) == "" {
					continue
				}
				if _, dup := seen[ann.URL]; dup {
					continue
				}
				seen[ann.URL] = struct{}{}
				sources = append(sources, ann.URL)
			}
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return SearchResult{}, fmt.Errorf("empty response from responses api")
	}
	return SearchResult{Text: out, Sources: sources}, nil
}

// OpenAI responses API request/response types (the subset used here).

type respMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respTool struct {
	Type string `json:"type"`
}

type respRequest struct {
	Model string        `json:"model"`
	Input []respMessage `json:"input"`
	Tools []respTool    `json:"tools,omitempty"`
}

type respResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			Annotations []struct {
				Type  string `json:"type"`
				URL   string `json:"url"`
				Title string `json:"title"`
			} `json:"annotations"`
		} `json:"content"`
	} `json:"output"`
}
