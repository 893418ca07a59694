package callflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/callflow"
	"github.com/dkoval/callflow/testutil"
)

func TestWithRecovery(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "panicky",
		Handler: func(context.Context, string, map[string]any) (string, error) {
			panic("boom")
		},
	}
	wrapped := callflow.Wrap(provider, callflow.WithRecovery())

	_, err := wrapped.Invoke(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, callflow.IsSystemError(err))
	assert.Equal(t, "panicky", wrapped.Name())
}

func TestWithInvokeTimeout(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "slow",
		Handler: func(ctx context.Context, _ string, _ map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
				return "late", nil
			}
		},
	}
	wrapped := callflow.Wrap(provider, callflow.WithInvokeTimeout(20*time.Millisecond))

	_, err := wrapped.Invoke(context.Background(), "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrap_DelegatesMetadata(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
	}
	wrapped := callflow.Wrap(provider, callflow.WithRecovery(), callflow.WithLogging(nil))
	assert.Equal(t, "weather", wrapped.Name())
	assert.True(t, wrapped.Enabled())
	require.Len(t, wrapped.Tools(), 1)
	assert.Equal(t, "get_weather", wrapped.Tools()[0].Name)
}
