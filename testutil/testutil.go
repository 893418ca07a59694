// Package testutil provides scripted fakes for loop and pipeline tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkoval/callflow"
)

// EngineReply is one scripted engine response.
type EngineReply struct {
	Text  string
	Calls []callflow.ToolCall
	Err   error
}

// Engine replays scripted replies in order. Implements callflow.Engine.
type Engine struct {
	mu      sync.Mutex
	Replies []EngineReply
	// Requests records every Chat invocation for assertions.
	Requests [][]callflow.Message
}

func (e *Engine) Chat(_ context.Context, messages []callflow.Message, _ []callflow.ToolDefinition) (string, []callflow.ToolCall, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, messages)
	if len(e.Replies) == 0 {
		return "", nil, fmt.Errorf("testutil: no scripted reply left")
	}
	r := e.Replies[0]
	e.Replies = e.Replies[1:]
	return r.Text, r.Calls, r.Err
}

// Provider serves a fixed tool list and dispatches invocations to Handler.
// Implements callflow.Provider.
type Provider struct {
	ProviderName string
	Defs         []callflow.ToolDefinition
	Handler      func(ctx context.Context, name string, args map[string]any) (string, error)
	Disabled     bool

	mu      sync.Mutex
	Invoked []string
}

func (p *Provider) Name() string  { return p.ProviderName }
func (p *Provider) Enabled() bool { return !p.Disabled }

func (p *Provider) Tools() []callflow.ToolDefinition {
	defs := make([]callflow.ToolDefinition, len(p.Defs))
	for i, d := range p.Defs {
		d.Origin = callflow.OriginRemote
		d.Provider = p.ProviderName
		defs[i] = d
	}
	return defs
}

func (p *Provider) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	p.mu.Lock()
	p.Invoked = append(p.Invoked, name)
	p.mu.Unlock()
	if p.Handler == nil {
		return "ok", nil
	}
	return p.Handler(ctx, name, args)
}

// Settings is an in-memory callflow.SettingsStore.
type Settings struct {
	mu     sync.Mutex
	always bool
	Err    error
}

func (s *Settings) AlwaysAllow(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.always, s.Err
}

func (s *Settings) SetAlwaysAllow(_ context.Context, allow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.always = allow
	return nil
}

// Evaler returns canned results keyed by source code. Implements
// callflow.Evaler.
type Evaler struct {
	Results map[string]callflow.EvalResult
	Err     error
}

func (e *Evaler) Eval(_ context.Context, code string) (callflow.EvalResult, error) {
	if e.Err != nil {
		return callflow.EvalResult{}, e.Err
	}
	if r, ok := e.Results[code]; ok {
		return r, nil
	}
	return callflow.EvalResult{Value: "none"}, nil
}
