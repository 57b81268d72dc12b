// Package chapter resolves the active chapter of a single long video from
// elapsed playback time.
package chapter

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformedChapters is returned for chapter lists whose start times are
// not finite and strictly increasing.
var ErrMalformedChapters = errors.New("chapter: malformed chapter list")

// Chapter is a named segment of one video. Chapters are read-only here.
type Chapter struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	StartSeconds float64 `json:"startSeconds"`
	EndSeconds   float64 `json:"endSeconds"`
	Order        int     `json:"order"`
}

// Validate checks the ordering the resolver relies on. Stored end times may
// drift past the next start; only starts must be strictly increasing.
func Validate(chapters []Chapter) error {
	for i, ch := range chapters {
		if !finite(ch.StartSeconds) || !finite(ch.EndSeconds) || ch.StartSeconds < 0 {
			return fmt.Errorf("%w: chapter %d has invalid bounds", ErrMalformedChapters, i)
		}
		if i > 0 && ch.StartSeconds <= chapters[i-1].StartSeconds {
			return fmt.Errorf("%w: chapter %d starts at %v, not after %v",
				ErrMalformedChapters, i, ch.StartSeconds, chapters[i-1].StartSeconds)
		}
	}
	return nil
}

// ActiveIndex returns the chapter i with start_i <= t < end_i, where end_i is
// the next chapter's start when there is one and the chapter's own end
// otherwise. It reports false before the first chapter and at or after the
// end of the last one.
func ActiveIndex(chapters []Chapter, t float64) (int, bool) {
	if len(chapters) == 0 || !finite(t) {
		return 0, false
	}
	// First chapter starting after t; the candidate is the one before it.
	i := sort.Search(len(chapters), func(i int) bool {
		return chapters[i].StartSeconds > t
	}) - 1
	if i < 0 {
		return 0, false
	}
	if i == len(chapters)-1 && t >= chapters[i].EndSeconds {
		return 0, false
	}
	return i, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
