package presentation

import "time"

// AgeBucket is a coarse freshness signal for a quote
type AgeBucket string

const (
	AgeFresh AgeBucket = "fresh"
	AgeAging AgeBucket = "aging"
	AgeStale AgeBucket = "stale"
)

const (
	// Quotes younger than this are fresh
	freshThreshold = 10 * time.Second

	// Quotes at least this old are stale
	staleThreshold = 60 * time.Second
)

// DataAge returns the whole seconds elapsed since observedAt, never negative
func DataAge(observedAt, now time.Time) int64 {
	age := int64(now.Sub(observedAt) / time.Second)
	if age < 0 {
		return 0
	}
	return age
}

// Bucket classifies an age in seconds
func Bucket(ageSeconds int64) AgeBucket {
	age := time.Duration(ageSeconds) * time.Second
	switch {
	case age < freshThreshold:
		return AgeFresh
	case age < staleThreshold:
		return AgeAging
	default:
		return AgeStale
	}
}
