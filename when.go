package scheduler

import "time"

// When tells CreateSchedule when, and how often, a schedule fires. Build it
// with Every, EveryString or At.
type When struct {
	interval time.Duration
	at       time.Time
	absolute bool
}

// Every fires every d, first at now+d.
func Every(d time.Duration) When {
	return When{interval: d}
}

// EveryString is Every with a duration string, e.g. "1h30m" or "90s".
// See ParseDurationString for the format.
func EveryString(s string) When {
	return When{interval: ParseDurationString(s)}
}

// At fires once at the given absolute time. The fire budget is forced to 1
// regardless of any WithTimes option. A time already in the past fires on
// the next poll tick.
func At(t time.Time) When {
	return When{at: t, absolute: true}
}

func (w When) resolve(now time.Time) (interval time.Duration, once bool) {
	if !w.absolute {
		return w.interval, false
	}
	interval = w.at.Sub(now)
	if interval < 0 {
		interval = 0
	}
	return interval, true
}
