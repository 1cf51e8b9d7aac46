package domain

import "time"

// Campaign scopes registrations. SuccessTarget is advisory; the worker enforces
// its own configured winner limit.
type Campaign struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	StartUTC      time.Time `json:"startUtc"`
	EndUTC        time.Time `json:"endUtc"`
	SuccessTarget int       `json:"successTarget"`
}

// IsOpen reports whether now falls inside [StartUTC, EndUTC].
func (c Campaign) IsOpen(now time.Time) bool {
	return !now.Before(c.StartUTC) && !now.After(c.EndUTC)
}

// Remaining returns how long the window stays open after now, or zero if it closed.
func (c Campaign) Remaining(now time.Time) time.Duration {
	if !now.Before(c.EndUTC) {
		return 0
	}
	return c.EndUTC.Sub(now)
}
