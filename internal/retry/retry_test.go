package retry

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

func TestNewCallerClampsBudget(t *testing.T) {
	assert.Equal(t, 1, NewCaller(0).MaxRetries)
	assert.Equal(t, 1, NewCaller(-3).MaxRetries)
	assert.Equal(t, 5, NewCaller(5).MaxRetries)
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	caller := &Caller{MaxRetries: 3}

	attempts := 0
	result, err := Do(caller, "ListOrders", func() (string, error) {
		attempts++
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
	assert.Equal(t, 1, attempts)
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	caller := &Caller{MaxRetries: 3}

	attempts := 0
	result, err := Do(caller, "ListOrders", func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, &spapi.APIError{Code: "RequestThrottled", Description: "slow down"}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, attempts)
}

func TestDoExhaustsBudgetAccumulatingDistinctCodes(t *testing.T) {
	caller := &Caller{MaxRetries: 3}

	failures := []*spapi.APIError{
		{Code: "RequestThrottled", Description: "first"},
		{Code: "InternalFailure", Description: "server hiccup"},
		{Code: "RequestThrottled", Description: "second"},
	}

	attempts := 0
	_, err := Do(caller, "ListOrders", func() (string, error) {
		defer func() { attempts++ }()
		return "", failures[attempts]
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, IsExhausted(err))

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Errors, 2)
	// The last description wins for a repeated code
	assert.Equal(t, "second", exhausted.Errors["RequestThrottled"])
	assert.Equal(t, "server hiccup", exhausted.Errors["InternalFailure"])
	assert.True(t, strings.HasPrefix(err.Error(), "maximum retries exceeded"))
}

func TestDoAbortsImmediatelyOnNonAPIError(t *testing.T) {
	caller := &Caller{MaxRetries: 5}
	boom := errors.New("connection refused")

	attempts := 0
	_, err := Do(caller, "ListOrders", func() (string, error) {
		attempts++
		return "", boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.False(t, IsExhausted(err))
}

func TestIsExhaustedOnWrappedError(t *testing.T) {
	inner := &ExhaustedError{Errors: map[string]string{"QuotaExceeded": "quota"}}
	wrapped := fmt.Errorf("failed to list orders: %w", inner)

	assert.True(t, IsExhausted(wrapped))
	assert.False(t, IsExhausted(errors.New("plain")))
}
