package tracker

import "time"

// ComputeStreak returns the current and longest runs of consecutive active
// days. days must be ascending; duplicates are ignored. The current streak
// stays alive through today if the user was active yesterday.
func ComputeStreak(days []time.Time, now time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	run := 0
	var prev time.Time
	for i, d := range days {
		d = dateOf(d)
		switch {
		case i == 0:
			run = 1
		case d.Equal(prev):
			continue
		case d.Equal(prev.AddDate(0, 0, 1)):
			run++
		default:
			run = 1
		}
		prev = d
		if run > longest {
			longest = run
		}
	}

	today := dateOf(now.UTC())
	if prev.Equal(today) || prev.Equal(today.AddDate(0, 0, -1)) {
		current = run
	}
	return current, longest
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
