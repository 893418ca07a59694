// Package mcp adapts MCP servers to the callflow Provider interface. Tool
// listings are fetched once per Connect; a server that fails to connect
// stays registered but contributes no tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	vmcp "github.com/viant/mcp"
	mcpSchema "github.com/viant/mcp-protocol/schema"
	mcpclient "github.com/viant/mcp/client"
	authtransport "github.com/viant/mcp/client/auth/transport"

	"github.com/dkoval/callflow"
)

// Server is one configured MCP server.
type Server struct {
	name      string
	url       string
	transport string
	command   string
	args      []string
	token     string
	disabled  bool

	mu     sync.Mutex
	client mcpclient.Interface
	tools  []callflow.ToolDefinition
	err    error
}

// Option configures a Server.
type Option func(*Server)

// WithHeaders applies custom HTTP headers from configuration. Only the
// Authorization bearer token is honored per request; other headers are
// accepted and ignored because the transport owns the connection.
func WithHeaders(headers map[string]string) Option {
	return func(s *Server) {
		for k, v := range headers {
			if strings.EqualFold(k, "Authorization") {
				s.token = strings.TrimPrefix(strings.TrimPrefix(v, "Bearer "), "bearer ")
			}
		}
	}
}

// WithTransportType selects "streaming", "sse", or "stdio". Defaults to
// "streaming".
func WithTransportType(t string) Option {
	return func(s *Server) {
		if t != "" {
			s.transport = t
		}
	}
}

// WithCommand sets the command line for stdio transport.
func WithCommand(command string, args ...string) Option {
	return func(s *Server) {
		s.command = command
		s.args = args
	}
}

// WithDisabled registers the server without ever connecting it.
func WithDisabled() Option {
	return func(s *Server) { s.disabled = true }
}

// New creates a Server for an HTTP endpoint. For stdio transport pass an
// empty url and WithCommand.
func New(name, url string, opts ...Option) *Server {
	s := &Server{
		name:      name,
		url:       url,
		transport: "streaming",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.name }

// Enabled reports whether the server contributes tools: configured enabled
// and successfully connected.
func (s *Server) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disabled && s.client != nil && s.err == nil
}

// Connected reports whether Connect succeeded.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.err == nil
}

// Err returns the last connect error, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Connect dials the server, initializes the session, and fetches the full
// tool listing, following pagination cursors. The error is also retained on
// the Server so the registry can skip it without failing other providers.
func (s *Server) Connect(ctx context.Context) error {
	if s.disabled {
		return nil
	}
	err := s.connect(ctx)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

func (s *Server) connect(ctx context.Context) error {
	options, err := s.clientOptions()
	if err != nil {
		return err
	}
	client, err := vmcp.NewClient(nil, options)
	if err != nil {
		return fmt.Errorf("mcp %s: new client: %w", s.name, err)
	}
	ctx = s.auth(ctx)
	if _, err := client.Initialize(ctx); err != nil {
		return fmt.Errorf("mcp %s: initialize: %w", s.name, err)
	}

	var tools []callflow.ToolDefinition
	var cursor *string
	for {
		list, err := client.ListTools(ctx, cursor)
		if err != nil {
			return fmt.Errorf("mcp %s: list tools: %w", s.name, err)
		}
		for _, t := range list.Tools {
			tools = append(tools, s.mapTool(t))
		}
		if list.NextCursor == nil || *list.NextCursor == "" {
			break
		}
		cursor = list.NextCursor
	}

	s.mu.Lock()
	s.client = client
	s.tools = tools
	s.mu.Unlock()
	return nil
}

func (s *Server) clientOptions() (*vmcp.ClientOptions, error) {
	options := &vmcp.ClientOptions{Name: s.name}
	switch s.transport {
	case "stdio":
		if s.command == "" {
			return nil, fmt.Errorf("mcp %s: stdio transport requires a command", s.name)
		}
		options.Transport = vmcp.ClientTransport{
			Type: "stdio",
			ClientTransportStdio: vmcp.ClientTransportStdio{
				Command:   s.command,
				Arguments: s.args,
			},
		}
	case "sse", "streaming":
		if s.url == "" {
			return nil, fmt.Errorf("mcp %s: %s transport requires a url", s.name, s.transport)
		}
		options.Transport = vmcp.ClientTransport{
			Type: s.transport,
			ClientTransportHTTP: vmcp.ClientTransportHTTP{
				URL: s.url,
			},
		}
	default:
		return nil, fmt.Errorf("mcp %s: unsupported transport type %q", s.name, s.transport)
	}
	return options, nil
}

// mapTool converts an MCP tool descriptor into a full-view definition.
func (s *Server) mapTool(t mcpSchema.Tool) callflow.ToolDefinition {
	properties := make(map[string]any, len(t.InputSchema.Properties))
	for k, v := range t.InputSchema.Properties {
		properties[k] = v
	}
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(t.InputSchema.Required) > 0 {
		params["required"] = t.InputSchema.Required
	}
	def := callflow.ToolDefinition{
		Name:       t.Name,
		Parameters: params,
		Origin:     callflow.OriginRemote,
		Provider:   s.name,
	}
	if t.Description != nil {
		def.Description = *t.Description
	}
	return def
}

// Tools returns the definitions captured at connect time.
func (s *Server) Tools() []callflow.ToolDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil
	}
	out := make([]callflow.ToolDefinition, len(s.tools))
	copy(out, s.tools)
	return out
}

// Invoke forwards one tool call. A single text content part is returned
// verbatim; anything else comes back as the JSON-encoded content array.
func (s *Server) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return "", fmt.Errorf("mcp %s: not connected", s.name)
	}
	if args == nil {
		args = map[string]any{}
	}
	params := &mcpSchema.CallToolRequestParams{
		Name:      name,
		Arguments: args,
	}
	result, err := client.CallTool(s.auth(ctx), params)
	if err != nil {
		return "", fmt.Errorf("mcp %s: call %s: %w", s.name, name, err)
	}
	if len(result.Content) == 0 {
		return "", nil
	}
	if len(result.Content) == 1 && result.Content[0].Type == "text" {
		return result.Content[0].Text, nil
	}
	data, err := json.Marshal(result.Content)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Disconnect drops the client and the cached tool listing. A later Connect
// starts fresh.
func (s *Server) Disconnect() {
	s.mu.Lock()
	s.client = nil
	s.tools = nil
	s.err = nil
	s.mu.Unlock()
}

// auth injects the configured bearer token so HTTP transports emit the
// Authorization header.
func (s *Server) auth(ctx context.Context) context.Context {
	if s.token == "" {
		return ctx
	}
	return context.WithValue(ctx, authtransport.ContextAuthTokenKey, s.token)
}
