package callflow

// Plan is the sequenced form of one assistant turn's call batch: the calls
// that execute, plus at most one invalid call whose corrective message is
// emitted for the turn. Calls after the first invalid one are dropped
// silently: once the model has diverged from a valid schema, the rest of
// the burst is unreliable.
type Plan struct {
	Execute      []ToolCall
	ErrorCall    *ToolCall
	ErrorOutcome *Outcome
}

// PlanBatch applies the sequencing policy to the ordered calls of one
// assistant turn and their validation outcomes. Calls before the first
// invalid outcome execute; the invalid call becomes the turn's error call;
// later calls are discarded. Executables are deduplicated by (name,
// argument text) in first-seen order so the model repeating itself cannot
// trigger a side effect twice.
func PlanBatch(calls []ToolCall, outcomes []Outcome) Plan {
	var plan Plan
	executable := calls
	for i, o := range outcomes {
		if i >= len(calls) {
			break
		}
		if !o.OK {
			executable = calls[:i]
			errCall := calls[i]
			errOutcome := o
			plan.ErrorCall = &errCall
			plan.ErrorOutcome = &errOutcome
			break
		}
	}
	plan.Execute = dedupeCalls(executable)
	return plan
}

// dedupeCalls collapses identical (name, arguments) pairs, keeping the first.
func dedupeCalls(calls []ToolCall) []ToolCall {
	if len(calls) < 2 {
		return calls
	}
	type key struct{ name, args string }
	seen := make(map[key]struct{}, len(calls))
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		k := key{c.Name, c.Arguments}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Empty reports whether the plan carries nothing to execute or report.
func (p Plan) Empty() bool {
	return len(p.Execute) == 0 && p.ErrorCall == nil
}

// Calls returns the deduplicated executable calls followed by the error
// call, if any. This is the external record of what actually happened for
// the persisted assistant message, not the raw extractor output.
func (p Plan) Calls() []ToolCall {
	out := make([]ToolCall, 0, len(p.Execute)+1)
	out = append(out, p.Execute...)
	if p.ErrorCall != nil {
		out = append(out, *p.ErrorCall)
	}
	return out
}
