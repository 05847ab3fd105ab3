// ABOUTME: One-shot structured prompt client for analysis and report flows
// ABOUTME: Sends a prompt plus optional binary attachment, returns validated JSON
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel handles the stateless analysis and report calls
const DefaultModel = "gemini-2.0-flash"

// RemoteError reports a network or service failure. Callers surface a
// user-facing retry message.
type RemoteError struct {
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote request failed: %v", e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Client issues one-shot prompt-to-JSON requests
type Client struct {
	gc    *genai.Client
	model string
}

// NewClient creates a prompt client backed by the Gemini API
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &RemoteError{Err: err}
	}

	if model == "" {
		model = DefaultModel
	}
	return &Client{gc: gc, model: model}, nil
}

// Send submits the prompt text with an optional binary attachment and
// returns the structured JSON response
func (c *Client) Send(ctx context.Context, text string, attachment []byte, attachmentMIME string) (json.RawMessage, error) {
	parts := []*genai.Part{genai.NewPartFromText(text)}
	if len(attachment) > 0 {
		parts = append(parts, genai.NewPartFromBytes(attachment, attachmentMIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, &RemoteError{Err: err}
	}

	raw, err := extractJSON(resp.Text())
	if err != nil {
		return nil, &RemoteError{Err: err}
	}
	return raw, nil
}

// extractJSON validates the model output as JSON, tolerating markdown
// code fences some models wrap around structured responses
func extractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response")
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return json.RawMessage(trimmed), nil
}
