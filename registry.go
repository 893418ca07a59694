package callflow

import (
	"fmt"
	"strings"
)

// listToolsArgs are the parameters of the listTools built-in.
type listToolsArgs struct {
	Query    string `json:"query,omitempty" description:"Optional search query; omit to list every tool"`
	UseRegex bool   `json:"use_regex,omitempty" description:"Treat query as a case-insensitive regular expression"`
}

// getToolSchemaArgs are the parameters of the getToolSchema built-in.
type getToolSchemaArgs struct {
	Name string `json:"name" description:"Name of the tool whose parameter schema to return"`
}

// evalCodeArgs are the parameters of the evalCode built-in.
type evalCodeArgs struct {
	Code string `json:"code" description:"Starlark source to evaluate"`
}

// Registry aggregates the built-in tools with the tool lists of the
// configured providers. Views are rebuilt every turn (cheap) so provider
// connects and disconnects between turns are always reflected.
type Registry struct {
	providers []Provider
	builtins  []ToolDefinition
}

// View is one turn's tool listing. Full is used for validation and
// execution. Prompt is what the model sees: identical, except every
// non-builtin's parameter schema is replaced by an empty object so the
// model must call getToolSchema before invoking an unfamiliar tool.
type View struct {
	Full   []ToolDefinition
	Prompt []ToolDefinition
}

// NewRegistry creates a Registry over providers. Built-in schemas are
// generated once, by reflection over the argument structs above.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{
		providers: providers,
		builtins:  builtinDefs(),
	}
}

func builtinDefs() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolListTools,
			Description: "List available tools with their descriptions. Accepts an optional search query.",
			Parameters:  mustSchema[listToolsArgs](),
			Origin:      OriginBuiltin,
		},
		{
			Name:        ToolGetToolSchema,
			Description: "Return the JSON Schema describing a tool's parameters. Call this before using any tool whose schema you have not seen.",
			Parameters:  mustSchema[getToolSchemaArgs](),
			Origin:      OriginBuiltin,
		},
		{
			Name:        ToolEvalCode,
			Description: "Evaluate Starlark code in a sandbox and return the produced value. Print output is captured separately.",
			Parameters:  mustSchema[evalCodeArgs](),
			Origin:      OriginBuiltin,
		},
	}
}

// mustSchema generates a schema for a built-in argument struct. The structs
// are compile-time known, so failure is a programmer error.
func mustSchema[T any]() map[string]any {
	m, err := generateSchema[T]()
	if err != nil {
		panic(fmt.Sprintf("callflow: builtin schema generation: %v", err))
	}
	return m
}

// BuildView assembles the current full and prompt tool views. Disabled
// providers and providers in an error state contribute nothing; they never
// fail the build for the others.
func (r *Registry) BuildView() View {
	full := make([]ToolDefinition, 0, len(r.builtins))
	full = append(full, r.builtins...)
	for _, p := range r.providers {
		if !p.Enabled() {
			continue
		}
		full = append(full, p.Tools()...)
	}
	prompt := make([]ToolDefinition, len(full))
	for i, def := range full {
		if def.Origin != OriginBuiltin {
			def.Parameters = emptyParameters()
		}
		prompt[i] = def
	}
	return View{Full: full, Prompt: prompt}
}

// emptyParameters is the redaction placeholder: a schema shape the engine
// accepts, disclosing nothing.
func emptyParameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Placeholders substituted by RenderSystemPrompt.
const (
	PlaceholderTools     = "{{tools}}"
	PlaceholderToolNames = "{{tool_names}}"
)

// DefaultSystemPrompt is the instruction template used when the operator
// supplies none.
const DefaultSystemPrompt = `You are a helpful assistant with access to tools.

Available tools:
{{tools}}

To call a tool, reply with a single JSON object: {"name": "<tool name>", "arguments": { ... }}.
Valid tool names: {{tool_names}}.
Tool parameter schemas are not listed above. Before calling an unfamiliar tool, call getToolSchema with its name and follow the returned schema exactly.`

// RenderSystemPrompt substitutes the tool listing and the comma-joined name
// list into the template's reserved placeholders. The template text itself
// is operator-customizable.
func (r *Registry) RenderSystemPrompt(template string, v View) string {
	var listing strings.Builder
	names := make([]string, 0, len(v.Prompt))
	for _, def := range v.Prompt {
		fmt.Fprintf(&listing, "- %s: %s\n", def.Name, def.Description)
		names = append(names, def.Name)
	}
	out := strings.ReplaceAll(template, PlaceholderTools, strings.TrimRight(listing.String(), "\n"))
	out = strings.ReplaceAll(out, PlaceholderToolNames, strings.Join(names, ", "))
	return out
}
