package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithHandler configures the IOHandler. Defaults to a TextHandler on
// stdin/stdout.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.handler = handler
	}
}

// WithBanner prints msg through SystemOutput before the first input.
func WithBanner(msg string) Option {
	return func(r *Runner) {
		r.banner = msg
	}
}
