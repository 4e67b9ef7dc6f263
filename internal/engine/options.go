package engine

import (
	"github.com/dshills/caseworks/internal/rules"
)

// Option configures a Session during creation.
type Option func(*Session)

// WithHistoryCapacity bounds how many versions the session retains. Values
// below 1 keep the default.
func WithHistoryCapacity(n int) Option {
	return func(s *Session) {
		if n >= 1 {
			s.capacity = n
		}
	}
}

// WithRules attaches a rule engine. Every Apply is checked against it; an
// error-severity finding rejects the edit. The caller keeps ownership and
// closes the engine itself.
func WithRules(checker *rules.Engine) Option {
	return func(s *Session) {
		s.checker = checker
	}
}

// WithDefaultLabel sets the label used when Apply is given an empty one.
func WithDefaultLabel(label string) Option {
	return func(s *Session) {
		if label != "" {
			s.defaultLabel = label
		}
	}
}
