// Package provider implements the default translation collaborator: an
// OpenAI-compatible chat-completions client. The dispatcher only depends on
// the Invoker interface; this package supplies the implementation the binary
// wires in.
package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lexiroute/lexiroute/internal/apperr"
	"github.com/lexiroute/lexiroute/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Client calls OpenAI-compatible chat-completions APIs. A single client is
// shared across endpoints; per-endpoint behavior (base URL, key, model,
// timeout) comes from the endpoint configuration on each call.
type Client struct {
	httpClient *http.Client
}

// NewClient constructs a provider client. When httpClient is nil a default
// client without a global timeout is used; deadlines come from per-endpoint
// configuration instead.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Translate sends text to the endpoint's chat-completions API and returns the
// translated text. Failures map onto the shared error taxonomy: transport
// problems become ConnectionError, HTTP 429 becomes RateLimitError with the
// provider's Retry-After hint attached, deadline overruns become
// TimeoutError, and unusable payloads become ResponseError.
func (c *Client) Translate(ctx context.Context, endpoint config.Endpoint, text, systemPrompt string) (string, error) {
	timeout := time.Duration(endpoint.Timeout()) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := buildChatRequest(endpoint.Model, text, systemPrompt)
	if err != nil {
		return "", err
	}
	url := strings.TrimSuffix(endpoint.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &apperr.ConnectionError{URL: endpoint.BaseURL, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if endpoint.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The parent context cancelling is the caller's signal, not a
		// provider failure; let it propagate as-is.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &apperr.TimeoutError{Timeout: timeout}
		}
		return "", &apperr.ConnectionError{URL: endpoint.BaseURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &apperr.ConnectionError{URL: endpoint.BaseURL, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &apperr.RateLimitError{
			ConnectionError: apperr.ConnectionError{URL: endpoint.BaseURL, StatusCode: resp.StatusCode},
			RetryAfter:      retryAfterHint(resp.Header, payload),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &apperr.ConnectionError{URL: endpoint.BaseURL, StatusCode: resp.StatusCode}
	}

	content := gjson.GetBytes(payload, "choices.0.message.content")
	if !content.Exists() {
		return "", &apperr.ResponseError{URL: endpoint.BaseURL, Raw: string(payload)}
	}
	return content.String(), nil
}

func buildChatRequest(model, text, systemPrompt string) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if model != "" {
		if body, err = sjson.SetBytes(body, "model", model); err != nil {
			return nil, err
		}
	}
	idx := 0
	if systemPrompt != "" {
		if body, err = sjson.SetBytes(body, "messages.0.role", "system"); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, "messages.0.content", systemPrompt); err != nil {
			return nil, err
		}
		idx = 1
	}
	if body, err = sjson.SetBytes(body, "messages."+strconv.Itoa(idx)+".role", "user"); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "messages."+strconv.Itoa(idx)+".content", text); err != nil {
		return nil, err
	}
	return body, nil
}

// retryAfterHint extracts the provider's 429 wait hint from the Retry-After
// header or an OpenAI-style error body. Nil when no usable hint exists.
func retryAfterHint(headers http.Header, body []byte) *time.Duration {
	if headers != nil {
		if val := headers.Get("Retry-After"); val != "" {
			if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
				d := time.Duration(seconds) * time.Second
				return &d
			}
			if t, err := time.Parse(time.RFC1123, val); err == nil {
				if d := time.Until(t); d > 0 {
					return &d
				}
			}
		}
	}
	if ms := gjson.GetBytes(body, "error.retry_after_ms"); ms.Exists() && ms.Int() > 0 {
		d := time.Duration(ms.Int()) * time.Millisecond
		return &d
	}
	return nil
}
