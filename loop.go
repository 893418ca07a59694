package callflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Loop drives one conversation: it feeds history to the engine, recovers
// tool calls from the reply, gates them through permissions, executes them,
// and re-enters the engine until a reply carries no calls or the turn cap
// is reached.
type Loop struct {
	engine    Engine
	registry  *Registry
	validator *Validator
	perms     *Permissions
	pipeline  *Pipeline
	logger    *slog.Logger
	opts      loopOptions

	history []Message
	pending *pendingState
}

// pendingState freezes a suspended batch together with the tool view it was
// validated against, so a later Resume executes against the same view.
type pendingState struct {
	plan Plan
	view View
}

// Turn is the result of one completed user turn. Exactly one of Content and
// Pending is meaningful: a non-nil Pending means the loop is suspended
// awaiting Resume.
type Turn struct {
	Content string
	Pending *PendingApproval
}

// NewLoop assembles a loop over engine and registry.
func NewLoop(engine Engine, registry *Registry, opts ...LoopOption) *Loop {
	o := defaultLoopOptions()
	for _, opt := range opts {
		opt(&o)
	}
	validator := NewValidator()
	return &Loop{
		engine:    engine,
		registry:  registry,
		validator: validator,
		perms:     NewPermissions(o.settings),
		pipeline:  NewPipeline(registry, validator, o.evaler, o.logger),
		logger:    o.logger,
		opts:      o,
	}
}

// History returns the accumulated conversation messages.
func (l *Loop) History() []Message {
	return l.history
}

// RunTurn submits userText and advances the conversation until the model
// stops calling tools, the turn cap is hit, or a batch suspends on
// permissions. Returns ErrPendingApproval if a previous batch is still
// awaiting Resume.
func (l *Loop) RunTurn(ctx context.Context, userText string) (*Turn, error) {
	if l.pending != nil {
		return nil, ErrPendingApproval
	}
	l.record(ctx, UserMessage(userText))
	return l.advance(ctx)
}

// Resume applies the user's decision to the suspended batch and continues
// the conversation. Returns ErrNoPending if nothing is suspended.
func (l *Loop) Resume(ctx context.Context, d Decision) (*Turn, error) {
	if l.pending == nil {
		return nil, ErrNoPending
	}
	state := l.pending
	l.pending = nil

	switch d {
	case DecisionDeny:
		// The recorded calls still get answers so the next engine request
		// carries a well-formed history; the turn then ends without
		// re-entering the engine.
		for _, call := range state.plan.Calls() {
			l.record(ctx, ToolMessage(call, "Tool call declined by the user.", true))
		}
		content := "Tool calls declined."
		l.record(ctx, Message{Role: RoleAssistant, Content: content})
		return &Turn{Content: content}, nil
	case DecisionSession:
		names := make([]string, 0, len(state.plan.Execute))
		for _, c := range state.plan.Execute {
			names = append(names, c.Name)
		}
		l.perms.GrantSession(names...)
	case DecisionAlways:
		if err := l.perms.GrantAlways(ctx); err != nil {
			l.pending = state
			return nil, fmt.Errorf("persist always-allow: %w", err)
		}
	case DecisionOnce:
		// executes without changing any grant
	}

	l.executeAndRecord(ctx, state.view, state.plan)
	return l.advance(ctx)
}

// advance is the engine re-entry loop.
func (l *Loop) advance(ctx context.Context) (*Turn, error) {
	for turn := 0; turn < l.opts.maxTurns; turn++ {
		view := l.registry.BuildView()
		messages := make([]Message, 0, len(l.history)+1)
		messages = append(messages, SystemMessage(l.registry.RenderSystemPrompt(l.opts.systemPrompt, view)))
		messages = append(messages, l.history...)

		text, calls, err := l.engine.Chat(ctx, messages, view.Prompt)
		if err != nil {
			if l.opts.crashMarker != "" && strings.Contains(err.Error(), l.opts.crashMarker) {
				l.logger.Warn("engine crash downgraded", "error", err)
				content := "The model run was interrupted. Please try again."
				l.record(ctx, Message{Role: RoleAssistant, Content: content})
				return &Turn{Content: content}, nil
			}
			return nil, &SystemError{Err: fmt.Errorf("engine: %w", err)}
		}
		if len(calls) == 0 {
			calls = ExtractCalls(text)
		}
		if len(calls) == 0 {
			l.record(ctx, Message{Role: RoleAssistant, Content: text})
			return &Turn{Content: text}, nil
		}

		outcomes := make([]Outcome, len(calls))
		for i, c := range calls {
			outcomes[i] = l.validator.Validate(c, view.Full)
		}
		plan := PlanBatch(calls, outcomes)
		l.record(ctx, Message{Role: RoleAssistant, Content: text, ToolCalls: plan.Calls()})
		if plan.Empty() {
			return &Turn{Content: text}, nil
		}

		need, err := l.perms.NeedsApproval(ctx, plan.Execute)
		if err != nil {
			return nil, &SystemError{Err: fmt.Errorf("permission check: %w", err)}
		}
		if len(need) > 0 {
			l.pending = &pendingState{plan: plan, view: view}
			return &Turn{Pending: &PendingApproval{
				Calls:        need,
				ErrorCall:    plan.ErrorCall,
				ErrorOutcome: plan.ErrorOutcome,
			}}, nil
		}

		l.executeAndRecord(ctx, view, plan)
	}

	content := "Stopping: the tool-call limit for this turn was reached."
	l.record(ctx, Message{Role: RoleAssistant, Content: content})
	return &Turn{Content: content}, nil
}

func (l *Loop) executeAndRecord(ctx context.Context, view View, plan Plan) {
	for _, m := range l.pipeline.Run(ctx, view, plan) {
		l.record(ctx, m)
	}
}

// record appends to history and journals to the store when one is set.
// Store failures are logged, not fatal: the in-memory conversation is the
// source of truth for the running loop.
func (l *Loop) record(ctx context.Context, m Message) {
	l.history = append(l.history, m)
	if l.opts.store == nil {
		return
	}
	if err := l.opts.store.SaveMessage(ctx, l.opts.chatID, m); err != nil {
		l.logger.Warn("message persist failed", "chat", l.opts.chatID, "error", err)
	}
}
