package openrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	providertypes "specdebate/pkg/provider/types"
)

// ErrorType classifies OpenRouter failures for retry handling.
type ErrorType int

const (
	ErrRateLimit          ErrorType = iota // HTTP 429
	ErrProviderOverloaded                  // HTTP 502, 503
	ErrContextTooLong                      // HTTP 400 + context_length_exceeded
	ErrContentFiltered                     // HTTP 400 + content_filter
	ErrAuth                                // HTTP 401, 403
	ErrMalformedResponse                   // JSON parse failure
	ErrTimeout                             // transport failure or deadline
	ErrUnknown
)

func (e ErrorType) String() string {
	switch e {
	case ErrRateLimit:
		return "rate_limit"
	case ErrProviderOverloaded:
		return "provider_overloaded"
	case ErrContextTooLong:
		return "context_length_exceeded"
	case ErrContentFiltered:
		return "content_filter"
	case ErrAuth:
		return "auth_error"
	case ErrMalformedResponse:
		return "malformed_response"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an API error with its classification and metadata.
type ClassifiedError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	RetryAfter time.Duration // rate limits only
}

func (e *ClassifiedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("openrouter %s (HTTP %d): %s (retry after %s)", e.Type, e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("openrouter %s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
}

// Retryable reports whether this error type supports automatic retry.
func (e *ClassifiedError) Retryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrProviderOverloaded, ErrTimeout, ErrMalformedResponse:
		return true
	default:
		return false
	}
}

// MaxRetries returns the maximum number of retries for this error type.
func (e *ClassifiedError) MaxRetries() int {
	switch e.Type {
	case ErrRateLimit, ErrProviderOverloaded:
		return 3
	case ErrMalformedResponse:
		return 2
	case ErrTimeout:
		return 1
	default:
		return 0
	}
}

// Kind maps the classification onto the shared provider error taxonomy.
func (e *ClassifiedError) Kind() providertypes.Kind {
	// A rejected key (ErrAuth) is a provider error: the credential was set.
	switch e.Type {
	case ErrMalformedResponse:
		return providertypes.KindMalformedResponse
	case ErrTimeout:
		return providertypes.KindTimeout
	default:
		return providertypes.KindProviderError
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func classifyHTTPError(resp *http.Response) *ClassifiedError {
	body, _ := io.ReadAll(resp.Body)

	var errBody errorBody
	_ = json.Unmarshal(body, &errBody)

	msg := errBody.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &ClassifiedError{
			Type:       ErrRateLimit,
			StatusCode: resp.StatusCode,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return &ClassifiedError{Type: ErrProviderOverloaded, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ClassifiedError{Type: ErrAuth, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusBadRequest:
		return classifyBadRequest(resp.StatusCode, msg, errBody)
	default:
		return &ClassifiedError{Type: ErrUnknown, StatusCode: resp.StatusCode, Message: msg}
	}
}

func classifyBadRequest(statusCode int, msg string, errBody errorBody) *ClassifiedError {
	combined := strings.ToLower(fmt.Sprint(errBody.Error.Code) + " " + errBody.Error.Type + " " + msg)

	switch {
	case strings.Contains(combined, "context_length_exceeded"),
		strings.Contains(combined, "maximum context length"),
		strings.Contains(combined, "too many tokens"):
		return &ClassifiedError{Type: ErrContextTooLong, StatusCode: statusCode, Message: msg}
	case strings.Contains(combined, "content_filter"),
		strings.Contains(combined, "content_policy"),
		strings.Contains(combined, "flagged"):
		return &ClassifiedError{Type: ErrContentFiltered, StatusCode: statusCode, Message: msg}
	default:
		return &ClassifiedError{Type: ErrUnknown, StatusCode: statusCode, Message: msg}
	}
}

// parseRetryAfter parses the Retry-After header value as seconds.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
