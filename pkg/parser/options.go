package parser

import (
	"mfcs/internal/logging"
)

// DefaultMaxCallBytes is a production-sensible cap on how much raw text a
// single open envelope may accumulate before it is abandoned and flushed back
// as content. Sessions run uncapped unless WithMaxCallBytes is set.
const DefaultMaxCallBytes = 1 << 20

type options struct {
	policy       DuplicateFieldPolicy
	maxCallBytes int
	logger       logging.Logger
	metrics      *Metrics
}

// Option customizes a session.
type Option func(*options)

func defaultOptions() options {
	return options{
		policy: LastFieldWins,
		logger: logging.Nop(),
	}
}

// WithDuplicateFieldPolicy selects which occurrence wins when an envelope
// repeats a field. The default is LastFieldWins.
func WithDuplicateFieldPolicy(policy DuplicateFieldPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithMaxCallBytes enables the open-envelope size cap. Zero or negative
// leaves the session uncapped, which is the default.
func WithMaxCallBytes(n int) Option {
	return func(o *options) {
		o.maxCallBytes = n
	}
}

// WithLogger attaches a logger to the session. The default discards output.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNop(logger)
	}
}

// WithMetrics attaches Prometheus collectors to the session. A nil Metrics is
// valid and records nothing.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
