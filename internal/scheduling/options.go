package scheduling

import (
	"time"

	"go.uber.org/zap"

	"interview-scheduler/internal/timemath"
)

type settings struct {
	clock timemath.Clock
	loc   *time.Location
	log   *zap.Logger
}

type Option func(*settings)

// WithClock injects the source of "now" used for capacity weeks and future-only generation.
func WithClock(c timemath.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocation sets the timezone in which weeks and availability rules are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		clock: timemath.SystemClock{},
		loc:   time.Local,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
