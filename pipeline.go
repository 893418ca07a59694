package callflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Pipeline executes a planned batch of tool calls sequentially and renders
// one tool message per call. Failure handling is asymmetric: a failing
// introspection call (listTools, getToolSchema) produces an error message
// and execution continues, while a failing evalCode or provider call halts
// the remainder of the batch.
type Pipeline struct {
	registry  *Registry
	validator *Validator
	evaler    Evaler
	providers map[string]Provider
	logger    *slog.Logger
}

// NewPipeline wires a pipeline over the registry's providers. evaler may be
// nil, in which case evalCode reports itself unavailable.
func NewPipeline(registry *Registry, validator *Validator, evaler Evaler, logger *slog.Logger) *Pipeline {
	providers := make(map[string]Provider, len(registry.providers))
	for _, p := range registry.providers {
		providers[p.Name()] = p
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry:  registry,
		validator: validator,
		evaler:    evaler,
		providers: providers,
		logger:    logger,
	}
}

// Run executes plan against view and returns the tool messages in call
// order. A batch that was split by an invalid call always ends with the
// corrective message for that call, whether or not execution halted before
// reaching it.
func (p *Pipeline) Run(ctx context.Context, view View, plan Plan) []Message {
	var out []Message
	halted := false
	for _, call := range plan.Execute {
		if halted {
			out = append(out, ToolMessage(call, "Skipped: a previous tool call in this batch failed.", true))
			continue
		}
		content, isErr := p.dispatch(ctx, view, call)
		if isErr {
			p.logger.Warn("tool call failed", "tool", call.Name, "id", call.ID)
			if p.haltsOnError(call.Name) {
				halted = true
			}
		}
		out = append(out, ToolMessage(call, content, isErr))
	}
	if plan.ErrorCall != nil {
		out = append(out, ToolMessage(*plan.ErrorCall, plan.ErrorOutcome.CorrectiveText(), true))
	}
	return out
}

// haltsOnError reports whether a failure of the named tool stops the rest
// of the batch. Introspection built-ins never halt; everything else does.
func (p *Pipeline) haltsOnError(name string) bool {
	return name != ToolListTools && name != ToolGetToolSchema
}

func (p *Pipeline) dispatch(ctx context.Context, view View, call ToolCall) (string, bool) {
	switch call.Name {
	case ToolListTools:
		return p.runListTools(view, call)
	case ToolGetToolSchema:
		return p.runGetToolSchema(view, call)
	case ToolEvalCode:
		return p.runEvalCode(ctx, call)
	default:
		return p.runProvider(ctx, view, call)
	}
}

func (p *Pipeline) runListTools(view View, call ToolCall) (string, bool) {
	var args listToolsArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "listTools: " + wrapJSONParseError(err).Error(), true
	}
	tools, err := SearchTools(view.Full, args.Query, args.UseRegex)
	if err != nil {
		return "listTools: " + err.Error(), true
	}
	if len(tools) == 0 {
		return "No tools matched the query.", false
	}
	var b strings.Builder
	for _, def := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}
	return strings.TrimRight(b.String(), "\n"), false
}

func (p *Pipeline) runGetToolSchema(view View, call ToolCall) (string, bool) {
	var args getToolSchemaArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "getToolSchema: " + wrapJSONParseError(err).Error(), true
	}
	def, ok := findTool(view.Full, args.Name)
	if !ok {
		return fmt.Sprintf("tool not found: %q", args.Name), true
	}
	schema := def.Parameters
	if schema == nil {
		schema = emptyParameters()
	}
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "getToolSchema: " + err.Error(), true
	}
	return string(raw), false
}

func (p *Pipeline) runEvalCode(ctx context.Context, call ToolCall) (string, bool) {
	if p.evaler == nil {
		return "Eval Error: code evaluation is not available", true
	}
	var args evalCodeArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "Eval Error: " + wrapJSONParseError(err).Error(), true
	}
	res, err := p.evaler.Eval(ctx, args.Code)
	if err != nil {
		return "Eval Error: " + err.Error(), true
	}
	if res.Output == "" {
		return res.Value, false
	}
	return res.Value + "\nOutput:\n" + res.Output, false
}

// runProvider forwards a call to the provider that advertised the tool.
// Arguments are re-validated against the full schema here because the
// prompt view the model saw was redacted.
func (p *Pipeline) runProvider(ctx context.Context, view View, call ToolCall) (string, bool) {
	def, ok := findTool(view.Full, call.Name)
	if !ok {
		return fmt.Sprintf("tool not found: %q", call.Name), true
	}
	if outcome := p.validator.Validate(call, view.Full); !outcome.OK {
		return outcome.CorrectiveText(), true
	}
	provider, ok := p.providers[def.Provider]
	if !ok {
		return fmt.Sprintf("provider %q is not connected", def.Provider), true
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return wrapJSONParseError(err).Error(), true
	}
	result, err := provider.Invoke(ctx, call.Name, args)
	if err != nil {
		return "tool error: " + err.Error(), true
	}
	return result, false
}
