package autosave

import "time"

// Clock schedules the quiet-window timer.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock uses time.AfterFunc.
func SystemClock() Clock {
	return systemClock{}
}
