package callflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Middleware wraps a Provider with cross-cutting behavior (logging,
// recovery, timeout).
type Middleware func(Provider) Provider

// Wrap applies middlewares to p in onion order: the first middleware is
// outermost.
func Wrap(p Provider, middlewares ...Middleware) Provider {
	for i := len(middlewares) - 1; i >= 0; i-- {
		p = middlewares[i](p)
	}
	return p
}

// WithLogging returns a middleware that logs invocation start, end,
// duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Provider) Provider {
		return &loggingProvider{providerBase: providerBase{next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that recovers panics from provider
// invocations and returns SystemError.
func WithRecovery() Middleware {
	return func(next Provider) Provider {
		return &recoveryProvider{providerBase{next: next}}
	}
}

// WithInvokeTimeout returns a middleware that bounds every invocation. When
// the caller's context expires first, that deadline wins.
func WithInvokeTimeout(d time.Duration) Middleware {
	return func(next Provider) Provider {
		return &timeoutProvider{providerBase: providerBase{next: next}, timeout: d}
	}
}

// providerBase delegates the non-invoking Provider methods to the wrapped
// provider; used by middleware wrappers.
type providerBase struct{ next Provider }

func (b *providerBase) Name() string            { return b.next.Name() }
func (b *providerBase) Enabled() bool           { return b.next.Enabled() }
func (b *providerBase) Tools() []ToolDefinition { return b.next.Tools() }

type loggingProvider struct {
	providerBase
	logger *slog.Logger
}

func (p *loggingProvider) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	p.logger.Info("tool start", "provider", p.next.Name(), "tool", name)
	start := time.Now()
	res, err := p.next.Invoke(ctx, name, args)
	dur := time.Since(start)
	if err != nil {
		p.logger.Error("tool error", "provider", p.next.Name(), "tool", name, "duration", dur, "error", err)
		return "", err
	}
	p.logger.Info("tool end", "provider", p.next.Name(), "tool", name, "duration", dur)
	return res, nil
}

type recoveryProvider struct{ providerBase }

func (p *recoveryProvider) Invoke(ctx context.Context, name string, args map[string]any) (res string, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = ""
			err = &SystemError{Err: fmt.Errorf("panic in tool %q: %v", name, r)}
		}
	}()
	return p.next.Invoke(ctx, name, args)
}

type timeoutProvider struct {
	providerBase
	timeout time.Duration
}

func (p *timeoutProvider) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if p.timeout <= 0 {
		return p.next.Invoke(ctx, name, args)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.next.Invoke(ctx, name, args)
}
