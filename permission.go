package callflow

import (
	"context"
	"sync"
)

// Decision is the user's answer to a pending approval.
type Decision int

const (
	// DecisionDeny declines the whole pending batch.
	DecisionDeny Decision = iota
	// DecisionOnce executes the batch without changing any permission record.
	DecisionOnce
	// DecisionSession grants every tool in the batch for the process lifetime.
	DecisionSession
	// DecisionAlways persists a durable allow-all flag before executing.
	DecisionAlways
)

// PendingApproval holds the calls awaiting a user decision plus the error
// call deferred until after that decision. At most one instance is live per
// Loop; approval is all-or-nothing for the batch.
type PendingApproval struct {
	Calls        []ToolCall
	ErrorCall    *ToolCall
	ErrorOutcome *Outcome
}

// Permissions is the tiered authorization gate. The two introspection
// built-ins are permanently pre-granted; session grants are cleared by a
// process restart; the always grant is a single global flag persisted
// through a SettingsStore.
type Permissions struct {
	mu       sync.Mutex
	session  map[string]struct{}
	settings SettingsStore
}

// NewPermissions creates a gate backed by settings. A nil settings store
// means the always grant never persists and reads as false.
func NewPermissions(settings SettingsStore) *Permissions {
	return &Permissions{
		session:  make(map[string]struct{}),
		settings: settings,
	}
}

// preGranted tools never require approval.
func preGranted(name string) bool {
	return name == ToolListTools || name == ToolGetToolSchema
}

// NeedsApproval returns the subset of calls whose tools are not pre-granted,
// not covered by the durable always-allow flag, and not session-granted.
// A non-empty result suspends the pipeline.
func (p *Permissions) NeedsApproval(ctx context.Context, calls []ToolCall) ([]ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if p.settings != nil {
		always, err := p.settings.AlwaysAllow(ctx)
		if err != nil {
			return nil, err
		}
		if always {
			return nil, nil
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var need []ToolCall
	for _, c := range calls {
		if preGranted(c.Name) {
			continue
		}
		if _, ok := p.session[c.Name]; ok {
			continue
		}
		need = append(need, c)
	}
	return need, nil
}

// GrantSession adds tool names to the session-granted set.
func (p *Permissions) GrantSession(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.session[n] = struct{}{}
	}
}

// SessionGranted reports whether name currently holds a session grant.
func (p *Permissions) SessionGranted(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.session[name]
	return ok
}

// GrantAlways persists the durable allow-all flag. The scope is all tools,
// not the single batch: that is the contract of the Always tier.
func (p *Permissions) GrantAlways(ctx context.Context) error {
	if p.settings == nil {
		return nil
	}
	return p.settings.SetAlwaysAllow(ctx, true)
}
