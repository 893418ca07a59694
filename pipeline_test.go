package callflow_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/callflow"
	"github.com/dkoval/callflow/testutil"
)

func weatherDef() callflow.ToolDefinition {
	return callflow.ToolDefinition{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
			"required": []any{"city"},
		},
	}
}

func newPipeline(t *testing.T, provider *testutil.Provider, evaler callflow.Evaler) (*callflow.Pipeline, callflow.View) {
	t.Helper()
	var reg *callflow.Registry
	if provider != nil {
		reg = callflow.NewRegistry(provider)
	} else {
		reg = callflow.NewRegistry()
	}
	p := callflow.NewPipeline(reg, callflow.NewValidator(), evaler, slog.Default())
	return p, reg.BuildView()
}

func TestPipeline_ProviderCall(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
		Handler: func(_ context.Context, name string, args map[string]any) (string, error) {
			return "sunny in " + args["city"].(string), nil
		},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.Equal(t, callflow.RoleTool, msgs[0].Role)
	assert.Equal(t, "1", msgs[0].ToolCallID)
	assert.Equal(t, "sunny in Oslo", msgs[0].Content)
	assert.False(t, msgs[0].IsError)
}

func TestPipeline_ProviderFailureHaltsBatch(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
		Handler: func(context.Context, string, map[string]any) (string, error) {
			return "", errors.New("backend down")
		},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
		{ID: "2", Name: "get_weather", Arguments: `{"city":"Bergen"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsError)
	assert.Contains(t, msgs[0].Content, "backend down")
	assert.True(t, msgs[1].IsError)
	assert.Contains(t, msgs[1].Content, "Skipped")
	assert.Len(t, provider.Invoked, 1)
}

func TestPipeline_ListToolsFailureDoesNotHalt(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "listTools", Arguments: `{"query":"(bad","use_regex":true}`},
		{ID: "2", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsError)
	assert.False(t, msgs[1].IsError)
	assert.Len(t, provider.Invoked, 1)
}

func TestPipeline_ListTools(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "listTools", Arguments: `{}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "- get_weather:")
	assert.Contains(t, msgs[0].Content, "- listTools:")
}

func TestPipeline_GetToolSchemaReturnsFullSchema(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "getToolSchema", Arguments: `{"name":"get_weather"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsError)
	assert.Contains(t, msgs[0].Content, `"city"`)
	assert.Contains(t, msgs[0].Content, `"required"`)
}

func TestPipeline_GetToolSchemaUnknownToolDoesNotHalt(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "getToolSchema", Arguments: `{"name":"nope"}`},
		{ID: "2", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsError)
	assert.Contains(t, msgs[0].Content, "tool not found")
	assert.False(t, msgs[1].IsError)
}

func TestPipeline_EvalCode(t *testing.T) {
	t.Parallel()
	evaler := &testutil.Evaler{Results: map[string]callflow.EvalResult{
		"1 + 2": {Value: "3"},
		"loud":  {Value: "3", Output: "computing"},
	}}
	p, view := newPipeline(t, nil, evaler)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "evalCode", Arguments: `{"code":"1 + 2"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.Equal(t, "3", msgs[0].Content)

	plan = callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "2", Name: "evalCode", Arguments: `{"code":"loud"}`},
	}}
	msgs = p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "3")
	assert.Contains(t, msgs[0].Content, "Output:\ncomputing")
}

func TestPipeline_EvalFailureHaltsBatch(t *testing.T) {
	t.Parallel()
	evaler := &testutil.Evaler{Err: errors.New("boom")}
	p, view := newPipeline(t, nil, evaler)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "evalCode", Arguments: `{"code":"x"}`},
		{ID: "2", Name: "listTools", Arguments: `{}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsError)
	assert.Contains(t, msgs[0].Content, "Eval Error")
	assert.Contains(t, msgs[1].Content, "Skipped")
}

func TestPipeline_EvalUnavailable(t *testing.T) {
	t.Parallel()
	p, view := newPipeline(t, nil, nil)
	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "evalCode", Arguments: `{"code":"x"}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsError)
	assert.Contains(t, msgs[0].Content, "not available")
}

func TestPipeline_CorrectiveMessageAlwaysEmitted(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
		Handler: func(context.Context, string, map[string]any) (string, error) {
			return "", errors.New("backend down")
		},
	}
	p, view := newPipeline(t, provider, nil)

	errCall := callflow.ToolCall{ID: "2", Name: "bad", Arguments: "{}"}
	outcome := callflow.Invalid("tool not found: \"bad\"", nil)
	plan := callflow.Plan{
		Execute:      []callflow.ToolCall{{ID: "1", Name: "get_weather", Arguments: `{"city":"Oslo"}`}},
		ErrorCall:    &errCall,
		ErrorOutcome: &outcome,
	}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsError)
	assert.Equal(t, "2", msgs[1].ToolCallID)
	assert.Contains(t, msgs[1].Content, "Invalid tool call")
}

func TestPipeline_RevalidatesAgainstFullSchema(t *testing.T) {
	t.Parallel()
	provider := &testutil.Provider{
		ProviderName: "weather",
		Defs:         []callflow.ToolDefinition{weatherDef()},
	}
	p, view := newPipeline(t, provider, nil)

	plan := callflow.Plan{Execute: []callflow.ToolCall{
		{ID: "1", Name: "get_weather", Arguments: `{}`},
	}}
	msgs := p.Run(context.Background(), view, plan)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsError)
	assert.Contains(t, msgs[0].Content, "Invalid tool call")
	assert.Empty(t, provider.Invoked)
}
