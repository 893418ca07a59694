// Package sandbox evaluates model-supplied Starlark code with a hard wall
// clock limit. Starlark carries no filesystem, network, or process
// builtins, so isolation holds by construction; the watchdog guards
// against runaway computation.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/dkoval/callflow"
)

const (
	// DefaultTimeout bounds one evaluation.
	DefaultTimeout = 1000 * time.Millisecond
	// DefaultMaxSteps is the interpreter step budget in safe mode, a
	// backstop for code that burns CPU without yielding to the clock.
	DefaultMaxSteps = 10_000_000
)

// Sandbox evaluates Starlark snippets. The zero value is not usable; call
// New.
type Sandbox struct {
	timeout  time.Duration
	maxSteps uint64
	safe     bool
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithTimeout overrides the evaluation wall clock limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxSteps overrides the safe-mode interpreter step budget.
func WithMaxSteps(n uint64) Option {
	return func(s *Sandbox) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// WithUnsafe disables the timeout and the step budget. Evaluation then runs
// until completion or context cancellation.
func WithUnsafe() Option {
	return func(s *Sandbox) { s.safe = false }
}

// New creates a Sandbox in safe mode with the default limits.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		timeout:  DefaultTimeout,
		maxSteps: DefaultMaxSteps,
		safe:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fileOptions enables the imperative dialect: while loops, top-level
// control flow, reassignment, sets, and recursion.
var fileOptions = &syntax.FileOptions{
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Set:             true,
	Recursion:       true,
}

// Eval runs code and returns the produced value plus captured print output.
// A single expression evaluates to its value; otherwise the code runs as a
// program and the value is the final binding named "result", if any.
func (s *Sandbox) Eval(ctx context.Context, code string) (callflow.EvalResult, error) {
	var printed strings.Builder
	thread := &starlark.Thread{
		Name: "eval",
		Print: func(_ *starlark.Thread, msg string) {
			printed.WriteString(msg)
			printed.WriteByte('\n')
		},
	}

	var timedOut atomic.Bool
	if s.safe {
		thread.SetMaxExecutionSteps(s.maxSteps)
		watchdog := time.AfterFunc(s.timeout, func() {
			timedOut.Store(true)
			thread.Cancel("time limit exceeded")
		})
		defer watchdog.Stop()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("context cancelled")
		case <-done:
		}
	}()

	value, err := s.run(thread, code)
	if err != nil {
		if timedOut.Load() {
			return callflow.EvalResult{}, fmt.Errorf("%w after %s", callflow.ErrEvalTimeout, s.timeout)
		}
		// The step budget can trip before the watchdog in tight loops.
		if strings.Contains(err.Error(), "too many steps") {
			return callflow.EvalResult{}, fmt.Errorf("%w: step budget exhausted", callflow.ErrEvalTimeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return callflow.EvalResult{}, ctxErr
		}
		return callflow.EvalResult{}, &callflow.ClientError{Reason: "eval: " + evalErrorText(err), Err: err}
	}

	return callflow.EvalResult{
		Value:  render(value),
		Output: strings.TrimRight(printed.String(), "\n"),
	}, nil
}

// run picks expression or program evaluation by trying the source as a
// single expression first.
func (s *Sandbox) run(thread *starlark.Thread, code string) (starlark.Value, error) {
	if expr, err := fileOptions.ParseExpr("eval", code, 0); err == nil {
		return starlark.EvalExprOptions(fileOptions, thread, expr, starlark.StringDict{})
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, "eval", code, starlark.StringDict{})
	if err != nil {
		return nil, err
	}
	if v, ok := globals["result"]; ok {
		return v, nil
	}
	return starlark.None, nil
}

// render serializes a Starlark value for the tool result. Strings come back
// raw, not quoted; None becomes empty.
func render(v starlark.Value) string {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return ""
	case starlark.String:
		return string(val)
	default:
		return v.String()
	}
}

// evalErrorText prefers the Starlark backtrace, which names the failing
// line, over the bare message.
func evalErrorText(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}
