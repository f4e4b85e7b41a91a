package clock

import "time"

// Clock is the source of "now" for callers that do not pass an explicit reference instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
