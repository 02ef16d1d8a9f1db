package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const noCodeFound = "NO_CODE_FOUND"

// LLMExtractor is the optional last-resort extractor. Its output is never
// trusted directly; callers re-validate with AcceptCode.
type LLMExtractor interface {
	Extract(ctx context.Context, body string) (string, error)
}

// HTTPLLMExtractor posts a chat-completion request to a configured endpoint.
type HTTPLLMExtractor struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

func NewHTTPLLMExtractor(client *http.Client, url, apiKey, model string) *HTTPLLMExtractor {
	return &HTTPLLMExtractor{client: client, url: url, apiKey: apiKey, model: model}
}

const extractPrompt = "Extract the numeric or alphanumeric verification code (4-8 characters) from this email. Reply with the code only, or the literal NO_CODE_FOUND if there is none.\n\n"

func (e *HTTPLLMExtractor) Extract(ctx context.Context, body string) (string, error) {
	if len(body) > 4000 {
		body = body[:4000]
	}
	payload := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "user", "content": extractPrompt + body},
		},
		"max_tokens":  16,
		"temperature": 0,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm extract: status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm extract: no choices")
	}

	answer := strings.TrimSpace(out.Choices[0].Message.Content)
	if answer == "" || strings.Contains(answer, noCodeFound) {
		return "", fmt.Errorf("llm extract: no code found")
	}
	return answer, nil
}
