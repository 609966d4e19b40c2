package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const extractorHTTPTimeout = 60 * time.Second

const extractionSystemPrompt = `You extract durable facts about the user from a single prompt.
Respond with a JSON array only. Each element: {"type":"preference|dislike|hobby|trait|belief|goal","statement":"User ...","tags":["..."]}.
Statements must be third person and start with "User ". Return [] when the prompt reveals nothing durable.`

// LLMExtractor calls an OpenAI-compatible chat completions endpoint to
// extract candidate statements. Output is decoded leniently; anything the
// model garbles is dropped rather than surfaced as an error.
type LLMExtractor struct {
	apiBase    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewLLMExtractor(apiBase, apiKey, model string) (*LLMExtractor, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("extractor API base not configured")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("extractor API key not configured")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("extractor model not configured")
	}
	return &LLMExtractor{
		apiBase:    apiBase,
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: extractorHTTPTimeout},
	}, nil
}

func (x *LLMExtractor) Extract(ctx context.Context, prompt string) ([]CandidateStatement, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, nil
	}

	requestBody := map[string]any{
		"model": x.model,
		"messages": []map[string]string{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.0,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	endpoint := x.apiBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+x.apiKey)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send extraction request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read extraction response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("extraction API request failed: status=%d body=%s", resp.StatusCode, truncateBody(body))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return nil, nil
	}
	return decodeStatements(apiResponse.Choices[0].Message.Content), nil
}

func truncateBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 500 {
		return trimmed[:500] + "..."
	}
	return trimmed
}
