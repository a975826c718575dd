package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ProviderError carries the provider HTTP status so callers can distinguish
// transient failures (retryable) from permanent ones. Status 0 means the
// request never got a response (transport failure) and is treated as
// transient.
type ProviderError struct {
	Status   int
	Detail   string
	sentinel error
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("provider request failed: %s: %s", e.Detail, e.sentinel)
	}
	return fmt.Sprintf("provider API error %d: %s: %s", e.Status, e.Detail, e.sentinel)
}

func (e *ProviderError) Unwrap() error { return e.sentinel }

// Retryable reports whether the failure is worth retrying: rate limits,
// server-side errors, and transport failures.
func (e *ProviderError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// parseAPIError maps a go-openai error to a ProviderError wrapping sentinel.
func parseAPIError(err error, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return &ProviderError{Status: reqErr.HTTPStatusCode, Detail: detail, sentinel: sentinel}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Status: apiErr.HTTPStatusCode, Detail: apiErr.Message, sentinel: sentinel}
	}

	return &ProviderError{Detail: err.Error(), sentinel: sentinel}
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
