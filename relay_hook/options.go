package relayhook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc replaces the default data of one event type. It receives the
// default payload struct and returns what is published as Event.Data.
type PayloadFunc func(args any) (any, error)

// WithEvents publishes only the listed event types.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc installs fn for eventType.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}

// WithChannel sets the channel name. The default is DefaultChannel.
func WithChannel(channel string) Option {
	return func(h *Extension) { h.channel = channel }
}

// WithLogger sets the logger for publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Extension) { h.logger = l }
}
