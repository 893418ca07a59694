package callflow

import "log/slog"

// LoopOption configures a Loop.
type LoopOption func(*loopOptions)

type loopOptions struct {
	logger       *slog.Logger
	maxTurns     int
	systemPrompt string
	store        ConversationStore
	chatID       string
	settings     SettingsStore
	evaler       Evaler
	crashMarker  string
}

func defaultLoopOptions() loopOptions {
	return loopOptions{
		logger:       slog.Default(),
		maxTurns:     10,
		systemPrompt: DefaultSystemPrompt,
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) LoopOption {
	return func(o *loopOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxTurns caps engine re-entries per user turn. Defaults to 10.
func WithMaxTurns(n int) LoopOption {
	return func(o *loopOptions) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithSystemPrompt replaces the default instruction template. The template
// may use the {{tools}} and {{tool_names}} placeholders.
func WithSystemPrompt(template string) LoopOption {
	return func(o *loopOptions) {
		if template != "" {
			o.systemPrompt = template
		}
	}
}

// WithStore enables message persistence into chatID.
func WithStore(store ConversationStore, chatID string) LoopOption {
	return func(o *loopOptions) {
		o.store = store
		o.chatID = chatID
	}
}

// WithSettings backs the permission gate's durable always-allow flag.
func WithSettings(settings SettingsStore) LoopOption {
	return func(o *loopOptions) {
		o.settings = settings
	}
}

// WithEvaler enables the evalCode built-in.
func WithEvaler(evaler Evaler) LoopOption {
	return func(o *loopOptions) {
		o.evaler = evaler
	}
}

// WithCrashMarker sets a substring that identifies recoverable engine
// crashes. An engine error containing the marker is downgraded to an
// assistant message instead of failing the turn. Empty disables downgrade.
func WithCrashMarker(marker string) LoopOption {
	return func(o *loopOptions) {
		o.crashMarker = marker
	}
}
