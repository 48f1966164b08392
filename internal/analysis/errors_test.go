package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransientClassification(t *testing.T) {
	transient := []error{
		ErrRateLimited,
		ErrMalformedResponse,
		context.DeadlineExceeded,
		fmt.Errorf("wrap: %w", context.DeadlineExceeded),
		errors.New("dial tcp: connection refused"),
		errors.New("HTTP 429 Too Many Requests"),
		errors.New("service temporarily unavailable"),
		errors.New("request timed out"),
	}
	for _, err := range transient {
		require.True(t, Transient(err), "expected transient: %v", err)
	}

	permanent := []error{
		nil,
		ErrEmptySelection,
		errors.New("invalid api key"),
		errors.New("model not found"),
	}
	for _, err := range permanent {
		require.False(t, Transient(err), "expected permanent: %v", err)
	}
}
