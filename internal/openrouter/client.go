package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNoChoices is returned when a 2xx response carries no usable choice.
	ErrNoChoices = errors.New("no choices in response")

	// ErrMalformedResponse is returned when a 2xx body is not valid JSON.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for any non-2xx HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Message)
}

const (
	maxResponseBytes = 16 << 20
	maxErrorRunes    = 300
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiURL  string
	apiKey  string
	http    *http.Client
	maxBody int64
}

// NewClient creates a client. Timeouts are expected to come from the request
// context; httpClient may be nil.
func NewClient(apiURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{apiURL: apiURL, apiKey: apiKey, http: httpClient, maxBody: maxResponseBytes}
}

// Complete sends one chat completion request for model.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (*Completion, error) {
	payload, err := json.Marshal(Request{Model: model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, c.maxBody)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}

	var apiResponse APIResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(apiResponse.Choices) == 0 {
		if apiResponse.Error != nil && apiResponse.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoChoices, apiResponse.Error.Message)
		}
		return nil, ErrNoChoices
	}

	choice := apiResponse.Choices[0]
	completion := &Completion{
		FinishReason: choice.FinishReason,
		StatusCode:   resp.StatusCode,
	}
	if choice.Message.Content != nil {
		completion.Content = *choice.Message.Content
	}
	if raw := choice.Message.ReasoningDetails; len(raw) > 0 && string(raw) != "null" {
		completion.ReasoningDetails = raw
	}
	if apiResponse.Usage != nil {
		completion.Usage = *apiResponse.Usage
	}
	return completion, nil
}

// errorMessage extracts a concise error message from a failed response body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Error) > 0 {
		var apiErr APIError
		if err := json.Unmarshal(parsed.Error, &apiErr); err == nil && apiErr.Message != "" {
			return apiErr.Message
		}
		var msg string
		if err := json.Unmarshal(parsed.Error, &msg); err == nil && msg != "" {
			return msg
		}
	}

	text := string(body)
	if runes := []rune(text); len(runes) > maxErrorRunes {
		text = string(runes[:maxErrorRunes])
	}
	return strings.ReplaceAll(text, "\n", " ")
}
