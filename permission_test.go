package callflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettings struct {
	always bool
	err    error
}

func (s *memSettings) AlwaysAllow(context.Context) (bool, error) { return s.always, s.err }
func (s *memSettings) SetAlwaysAllow(_ context.Context, allow bool) error {
	if s.err != nil {
		return s.err
	}
	s.always = allow
	return nil
}

func TestPermissions_IntrospectionPreGranted(t *testing.T) {
	t.Parallel()
	p := NewPermissions(&memSettings{})
	need, err := p.NeedsApproval(context.Background(), []ToolCall{
		{Name: ToolListTools},
		{Name: ToolGetToolSchema},
	})
	require.NoError(t, err)
	assert.Empty(t, need)
}

func TestPermissions_UnknownToolNeedsApproval(t *testing.T) {
	t.Parallel()
	p := NewPermissions(&memSettings{})
	need, err := p.NeedsApproval(context.Background(), []ToolCall{
		{Name: ToolListTools},
		{Name: "get_weather"},
		{Name: ToolEvalCode},
	})
	require.NoError(t, err)
	require.Len(t, need, 2)
	assert.Equal(t, "get_weather", need[0].Name)
	assert.Equal(t, ToolEvalCode, need[1].Name)
}

func TestPermissions_SessionGrant(t *testing.T) {
	t.Parallel()
	p := NewPermissions(&memSettings{})
	p.GrantSession("get_weather")
	assert.True(t, p.SessionGranted("get_weather"))

	need, err := p.NeedsApproval(context.Background(), []ToolCall{{Name: "get_weather"}})
	require.NoError(t, err)
	assert.Empty(t, need)

	// A restart clears session grants.
	fresh := NewPermissions(&memSettings{})
	need, err = fresh.NeedsApproval(context.Background(), []ToolCall{{Name: "get_weather"}})
	require.NoError(t, err)
	assert.Len(t, need, 1)
}

func TestPermissions_AlwaysAllowCoversEverything(t *testing.T) {
	t.Parallel()
	settings := &memSettings{}
	p := NewPermissions(settings)
	require.NoError(t, p.GrantAlways(context.Background()))
	assert.True(t, settings.always)

	// The flag is global, not per tool: a gate sharing the store sees it.
	other := NewPermissions(settings)
	need, err := other.NeedsApproval(context.Background(), []ToolCall{
		{Name: "get_weather"},
		{Name: "anything_else"},
	})
	require.NoError(t, err)
	assert.Empty(t, need)
}

func TestPermissions_NilSettings(t *testing.T) {
	t.Parallel()
	p := NewPermissions(nil)
	require.NoError(t, p.GrantAlways(context.Background()))
	need, err := p.NeedsApproval(context.Background(), []ToolCall{{Name: "get_weather"}})
	require.NoError(t, err)
	assert.Len(t, need, 1)
}

func TestPermissions_SettingsErrorPropagates(t *testing.T) {
	t.Parallel()
	p := NewPermissions(&memSettings{err: assert.AnError})
	_, err := p.NeedsApproval(context.Background(), []ToolCall{{Name: "get_weather"}})
	assert.Error(t, err)
}
