package callflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name     string
	defs     []ToolDefinition
	disabled bool
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Enabled() bool { return !p.disabled }
func (p *stubProvider) Tools() []ToolDefinition {
	defs := make([]ToolDefinition, len(p.defs))
	for i, d := range p.defs {
		d.Origin = OriginRemote
		d.Provider = p.name
		defs[i] = d
	}
	return defs
}
func (p *stubProvider) Invoke(context.Context, string, map[string]any) (string, error) {
	return "", nil
}

func TestRegistry_BuildView(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{name: "weather", defs: []ToolDefinition{weatherTool()}}
	reg := NewRegistry(provider)
	view := reg.BuildView()

	require.Len(t, view.Full, 4)
	require.Len(t, view.Prompt, 4)
	assert.Equal(t, ToolListTools, view.Full[0].Name)
	assert.Equal(t, ToolGetToolSchema, view.Full[1].Name)
	assert.Equal(t, ToolEvalCode, view.Full[2].Name)
	assert.Equal(t, "get_weather", view.Full[3].Name)
}

func TestRegistry_PromptViewRedactsRemoteSchemas(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(&stubProvider{name: "weather", defs: []ToolDefinition{weatherTool()}})
	view := reg.BuildView()

	full, ok := findTool(view.Full, "get_weather")
	require.True(t, ok)
	assert.Contains(t, full.Parameters["properties"], "city")

	prompt, ok := findTool(view.Prompt, "get_weather")
	require.True(t, ok)
	assert.Equal(t, emptyParameters(), prompt.Parameters)
	assert.Equal(t, full.Description, prompt.Description)
}

func TestRegistry_BuiltinSchemasSurviveRedaction(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	view := reg.BuildView()
	def, ok := findTool(view.Prompt, ToolGetToolSchema)
	require.True(t, ok)
	props, ok := def.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "name")
}

func TestRegistry_DisabledProviderSkipped(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(&stubProvider{name: "weather", defs: []ToolDefinition{weatherTool()}, disabled: true})
	view := reg.BuildView()
	assert.Len(t, view.Full, 3)
}

func TestRegistry_RenderSystemPrompt(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(&stubProvider{name: "weather", defs: []ToolDefinition{weatherTool()}})
	view := reg.BuildView()

	out := reg.RenderSystemPrompt("Tools:\n{{tools}}\nNames: {{tool_names}}", view)
	assert.Contains(t, out, "- get_weather: Current weather for a city")
	assert.Contains(t, out, "- listTools:")
	assert.Contains(t, out, "listTools, getToolSchema, evalCode, get_weather")
	assert.NotContains(t, out, "{{tools}}")
	assert.NotContains(t, out, "{{tool_names}}")
}

func TestRegistry_DefaultSystemPromptRenders(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	out := reg.RenderSystemPrompt(DefaultSystemPrompt, reg.BuildView())
	assert.NotContains(t, out, "{{")
	assert.Contains(t, out, "getToolSchema")
}
