package ai

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

// APIConfig configures the api transport.
type APIConfig struct {
	// Endpoint is the base URL of an OpenAI-compatible chat completions
	// API, e.g. https://api.openai.com/v1.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key"  yaml:"api_key"`
	Model    string `mapstructure:"model"    yaml:"model"`
}

// DefaultAPITimeout bounds a single chat completion request.
const DefaultAPITimeout = 120 * time.Second

// APITransport calls a remote model endpoint directly with the assembled
// prompt, expecting a structured (JSON) response.
type APITransport struct {
	endpoint   string
	apiKey     string
	model      string
	HTTPClient *http.Client
}

// NewAPITransport creates an api transport from configuration.
func NewAPITransport(cfg APIConfig, timeout time.Duration) (*APITransport, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ai: api transport requires an endpoint")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ai: api transport requires a model")
	}
	if timeout == 0 {
		timeout = DefaultAPITimeout
	}
	return &APITransport{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

// Kind returns KindAPI.
func (t *APITransport) Kind() Kind { return KindAPI }

// chatRequest is the chat completions request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the chat completions response body.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

const systemMessage = "You resolve open questions for a code-generation tool. " +
	"Follow the response format in the user message exactly. Do not explain."

// Send posts one chat completion request and returns the assistant text.
func (t *APITransport) Send(ctx context.Context, prompt string) (string, error) {
	url := t.endpoint + "/chat/completions"

	body, err := json.Marshal(chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error [%s]: %s", chatResp.Error.Code, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	if chatResp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("model response was truncated; reduce the number of AI blocks per pass")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// ResolveBatch sends one batched variable prompt and parses the JSON
// object answer.
func (t *APITransport) ResolveBatch(ctx context.Context, queries []VariableQuery) (map[string]any, error) {
	out, err := t.Send(ctx, buildVariablePrompt(queries))
	if err != nil {
		return nil, err
	}
	return parseAnswersJSON(out)
}

// ResolveEntries assembles one prompt for all entries and parses the
// keyed JSON object answer.
func (t *APITransport) ResolveEntries(ctx context.Context, globals []string, entries []*Entry, opts AssembleOptions) (map[string]any, error) {
	collector := NewCollector()
	for _, g := range globals {
		collector.AddGlobalContext(g)
	}
	for _, entry := range entries {
		if err := collector.AddEntry(entry.Key, entry.Contexts, entry.Prompt, entry.OutputDescription, entry.SourceFile); err != nil {
			return nil, err
		}
	}
	out, err := t.Send(ctx, Assemble(collector, AssembleOptions{
		OriginalCommand: opts.OriginalCommand,
		AnswersPath:     opts.AnswersPath,
	}))
	if err != nil {
		return nil, err
	}
	return parseAnswersJSON(out)
}
