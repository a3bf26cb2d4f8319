package service

import "time"

// DefaultRatePerMinute is used when no positive rate is configured.
const DefaultRatePerMinute = 15.0

// timestampResolution is the coarsest precision any session store keeps.
const timestampResolution = time.Millisecond

// BillingCalculator prices a parking interval by started minute.
type BillingCalculator struct {
	ratePerMinute float64
}

// NewBillingCalculator returns calculator with the given per-minute rate.
func NewBillingCalculator(ratePerMinute float64) *BillingCalculator {
	if ratePerMinute <= 0 {
		ratePerMinute = DefaultRatePerMinute
	}
	return &BillingCalculator{ratePerMinute: ratePerMinute}
}

// Rate returns the per-minute rate in effect.
func (b *BillingCalculator) Rate() float64 {
	return b.ratePerMinute
}

// Compute returns the billed minutes, partial minutes rounded up, and their cost.
// An exit at or before entry bills nothing.
func (b *BillingCalculator) Compute(entry, exit time.Time) (int64, float64) {
	elapsed := exit.Truncate(timestampResolution).Sub(entry.Truncate(timestampResolution))
	if elapsed <= 0 {
		return 0, 0
	}
	minutes := int64(elapsed / time.Minute)
	if elapsed%time.Minute != 0 {
		minutes++
	}
	return minutes, float64(minutes) * b.ratePerMinute
}

// sessionTime normalizes a timestamp before it is stored on a session.
func sessionTime(t time.Time) time.Time {
	return t.UTC().Truncate(timestampResolution)
}
