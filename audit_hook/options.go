package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithActions records only the listed actions. Without it every action is
// recorded. A supervisor that only cares about trouble would pass
// ActionJobFailed, ActionJobReleased and ActionProcessFailed.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets the logger used when the recorder fails.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
