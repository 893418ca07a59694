package callflow

import (
	"encoding/json"
	"fmt"
)

// Outcome is the result of validating one tool call.
type Outcome struct {
	OK      bool
	Message string
	// Example is a minimal valid call synthesized from the tool's schema,
	// present on invalid outcomes for tools that exist.
	Example *ExampleCall
}

// ExampleCall is rendered into corrective tool-result text so the model has
// a concrete template to imitate.
type ExampleCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Valid returns an OK outcome.
func Valid() Outcome { return Outcome{OK: true} }

// Invalid returns a failed outcome with a self-correction message.
func Invalid(message string, example *ExampleCall) Outcome {
	return Outcome{Message: message, Example: example}
}

// Validator checks tool-call arguments against the JSON Schemas of the
// current turn's full tool view. Schemas are compiled per call because
// definitions are rebuilt every turn; caching them would serve stale views.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator { return &Validator{} }

// Validate checks call against fullTools. The two introspection built-ins
// always validate: the model must be able to call them with no prior schema
// knowledge. Everything else is looked up by name, its arguments parsed and
// checked against the tool's schema.
func (v *Validator) Validate(call ToolCall, fullTools []ToolDefinition) Outcome {
	if call.Name == ToolListTools || call.Name == ToolGetToolSchema {
		return Valid()
	}
	def, ok := findTool(fullTools, call.Name)
	if !ok {
		return Invalid(fmt.Sprintf("tool not found: %q", call.Name), nil)
	}
	example := exampleFor(def)
	var args any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return Invalid("json parse error: "+err.Error(), example)
	}
	if len(def.Parameters) == 0 {
		return Valid()
	}
	resolved, err := compileRawSchema(def.Parameters)
	if err != nil {
		// A provider shipped a schema we cannot compile; do not punish the
		// model for it. The provider call path re-checks before invocation.
		return Valid()
	}
	if err := resolved.Validate(args); err != nil {
		return Invalid(err.Error(), example)
	}
	return Valid()
}

// findTool returns the definition named name, if present.
func findTool(tools []ToolDefinition, name string) (ToolDefinition, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}

// exampleFor synthesizes the minimal example call for def, or nil when the
// schema yields no object example.
func exampleFor(def ToolDefinition) *ExampleCall {
	ex := ExampleFromSchema(def.Parameters)
	argsMap, ok := ex.(map[string]any)
	if !ok {
		argsMap = map[string]any{}
	}
	return &ExampleCall{Name: def.Name, Arguments: argsMap}
}

// CorrectiveText renders an invalid outcome into the tool-result text fed
// back to the model.
func (o Outcome) CorrectiveText() string {
	text := "Invalid tool call: " + o.Message
	if o.Example != nil {
		if b, err := json.Marshal(o.Example); err == nil {
			text += "\nExample of a valid call:\n" + string(b)
		}
	}
	return text
}
