package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock reports the current instant. Components that make time-based
// decisions take a Clock so tests can drive them with a FakeClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns the wall clock in UTC.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(New),
)
