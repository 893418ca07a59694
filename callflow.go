package callflow

import (
	"context"
)

// Built-in tool names. listTools and getToolSchema are introspection tools
// and are permanently pre-granted by the permission gate; evalCode runs
// model-supplied code through an Evaler.
const (
	ToolListTools     = "listTools"
	ToolGetToolSchema = "getToolSchema"
	ToolEvalCode      = "evalCode"
)

// ToolOrigin tells where a tool definition came from.
type ToolOrigin int

const (
	OriginBuiltin ToolOrigin = iota
	OriginRemote
)

// ToolDefinition describes one callable tool. Definitions are rebuilt each
// model turn from the built-ins and the currently connected providers, so
// they are never cached across turns.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON Schema as a map, or nil when the tool takes none.
	Parameters map[string]any
	Origin     ToolOrigin
	// Provider is the originating provider name for OriginRemote tools.
	Provider string
}

// ToolCall is a single execution request recovered from model output.
// Arguments always travel as JSON text, never as a live object, so a call
// round-trips unchanged through storage and across the engine boundary.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation history. Assistant messages may
// carry tool calls; tool messages carry the correlation id of the call they
// answer. A tool message must never appear without a matching call on the
// immediately preceding assistant message.
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall
	// ToolCallID and ToolName are set on RoleTool messages only.
	ToolCallID string
	ToolName   string
	IsError    bool
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolMessage returns a tool-role message answering call.
func ToolMessage(call ToolCall, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    isError,
	}
}

// Engine is the inference boundary. It receives the ordered message list and
// the redacted tool-definition list, and returns the assistant text plus any
// structured tool calls the engine itself produced. Engines that only emit
// text return nil calls; the loop then extracts calls from the text.
type Engine interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, error)
}

// Provider is a remote tool provider (e.g. an MCP server). A provider in an
// error state reports zero tools; it never fails registry view building for
// other providers.
type Provider interface {
	Name() string
	Enabled() bool
	// Tools returns the definitions reported by the provider at connect time.
	Tools() []ToolDefinition
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// EvalResult is the outcome of a successful code evaluation. Value is the
// produced value serialized to text; Output is console-style print output,
// captured separately.
type EvalResult struct {
	Value  string
	Output string
}

// Evaler executes model-supplied code. Implementations decide the isolation
// model; see the sandbox package for the default.
type Evaler interface {
	Eval(ctx context.Context, code string) (EvalResult, error)
}

// ConversationStore persists messages as the loop produces them. A nil store
// disables persistence.
type ConversationStore interface {
	SaveMessage(ctx context.Context, chatID string, m Message) error
}

// SettingsStore persists the global always-allow permission flag across
// process restarts.
type SettingsStore interface {
	AlwaysAllow(ctx context.Context) (bool, error)
	SetAlwaysAllow(ctx context.Context, allow bool) error
}
