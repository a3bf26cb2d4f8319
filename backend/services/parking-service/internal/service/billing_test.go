package service

import (
	"testing"
	"time"
)

func TestBillingCompute(t *testing.T) {
	entry := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	calc := NewBillingCalculator(15)

	cases := []struct {
		name        string
		elapsed     time.Duration
		wantMinutes int64
	}{
		{"ninety seconds", 90 * time.Second, 2},
		{"sixty one seconds", 61 * time.Second, 2},
		{"exact minute", time.Minute, 1},
		{"sub minute", 5 * time.Second, 1},
		{"one millisecond", time.Millisecond, 1},
		{"sub millisecond is below resolution", 500 * time.Microsecond, 0},
		{"zero", 0, 0},
		{"exit before entry", -3 * time.Minute, 0},
		{"two hours", 2 * time.Hour, 120},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minutes, cost := calc.Compute(entry, entry.Add(tc.elapsed))
			if minutes != tc.wantMinutes {
				t.Fatalf("minutes = %d, want %d", minutes, tc.wantMinutes)
			}
			if want := float64(tc.wantMinutes) * 15; cost != want {
				t.Fatalf("cost = %v, want %v", cost, want)
			}
		})
	}
}

func TestBillingRateFallback(t *testing.T) {
	if got := NewBillingCalculator(0).Rate(); got != DefaultRatePerMinute {
		t.Fatalf("expected default rate, got %v", got)
	}
	if got := NewBillingCalculator(-1).Rate(); got != DefaultRatePerMinute {
		t.Fatalf("expected default rate for negative input, got %v", got)
	}

	entry := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	minutes, cost := NewBillingCalculator(2.5).Compute(entry, entry.Add(150*time.Second))
	if minutes != 3 || cost != 7.5 {
		t.Fatalf("got %d minutes costing %v", minutes, cost)
	}
}

func TestBillingIgnoresMonotonicAndZone(t *testing.T) {
	calc := NewBillingCalculator(1)
	entry := time.Now()
	// a store round trip drops the monotonic reading and may change the location
	stored := entry.Round(0).In(time.FixedZone("IST", 5*3600+1800))

	minutes, _ := calc.Compute(stored, entry.Add(61*time.Second))
	if minutes != 2 {
		t.Fatalf("expected 2 minutes, got %d", minutes)
	}
}
