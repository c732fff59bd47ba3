package retry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

// Caller executes marketplace operations with a fixed retry budget and a
// fixed pause between attempts (no exponential backoff). The budget is
// consumed per logical call site, not per process.
type Caller struct {
	MaxRetries int
	Interval   time.Duration
}

// NewCaller creates a caller with the account's retry budget. A budget
// below 1 is clamped to a single attempt; the default pause is one second.
func NewCaller(maxRetries int) *Caller {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Caller{
		MaxRetries: maxRetries,
		Interval:   time.Second,
	}
}

// ExhaustedError reports that every attempt failed. The caller is expected
// to disable the account's sync flag exactly once when it sees this error;
// the wrapper itself never mutates shared state.
type ExhaustedError struct {
	// Errors maps each distinct error code seen to its last description
	Errors map[string]string
}

func (e *ExhaustedError) Error() string {
	codes := make([]string, 0, len(e.Errors))
	for code := range e.Errors {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	lines := make([]string, 0, len(codes)+1)
	lines = append(lines, "maximum retries exceeded")
	for _, code := range codes {
		lines = append(lines, fmt.Sprintf("%s: %s", code, e.Errors[code]))
	}
	return strings.Join(lines, "\n")
}

// IsExhausted reports whether err carries a retry-budget exhaustion
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Do invokes op up to the caller's budget. Transient marketplace failures
// (*spapi.APIError) are accumulated by error code, with the last description
// winning for a repeated code; any other error aborts immediately. On
// success the payload is returned as-is.
func Do[T any](c *Caller, operation string, op func() (T, error)) (T, error) {
	var zero T
	errs := make(map[string]string)

	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}

		var apiErr *spapi.APIError
		if !errors.As(err, &apiErr) {
			return zero, err
		}

		errs[apiErr.Code] = apiErr.Description
		log.Warn().
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_retries", c.MaxRetries).
			Str("error_code", apiErr.Code).
			Msg("marketplace call failed, retrying")

		if attempt < c.MaxRetries {
			time.Sleep(c.Interval)
		}
	}

	log.Error().
		Str("operation", operation).
		Int("max_retries", c.MaxRetries).
		Int("distinct_errors", len(errs)).
		Msg("retry budget exhausted for marketplace call")

	return zero, &ExhaustedError{Errors: errs}
}
