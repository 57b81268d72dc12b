package chapter

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/clock"
	"github.com/coursetrack/coursetrack/internal/events"
	"github.com/coursetrack/coursetrack/internal/metrics"
)

// DefaultSuppressWindow is how long automatic re-resolution stays off after
// the user picks a chapter, so the seek can land before the next tick.
const DefaultSuppressWindow = 1250 * time.Millisecond

var ErrIndexOutOfRange = errors.New("chapter: index out of range")

// Seeker moves playback. playback.Clock satisfies it.
type Seeker interface {
	SeekTo(seconds float64)
}

// Completer persists chapter completion. progress.Persister satisfies it.
type Completer interface {
	CompleteChapter(chapterID string, done func(error))
}

type Config struct {
	SuppressWindow time.Duration
}

// Resolver tracks the active chapter. Playback drift moves it through
// Observe; clicks move it through Select, which always wins immediately and
// holds off Observe for the suppression window.
type Resolver struct {
	clk       clock.Clock
	bus       *events.Bus
	seeker    Seeker
	completer Completer
	window    time.Duration

	mu            sync.Mutex
	chapters      []Chapter
	index         int
	completed     map[string]bool
	inFlight      map[string]bool
	suppressUntil time.Time
	generation    uint64
}

func NewResolver(clk clock.Clock, bus *events.Bus, seeker Seeker, completer Completer, cfg Config) *Resolver {
	if cfg.SuppressWindow <= 0 {
		cfg.SuppressWindow = DefaultSuppressWindow
	}
	return &Resolver{
		clk:       clk,
		bus:       bus,
		seeker:    seeker,
		completer: completer,
		window:    cfg.SuppressWindow,
		completed: make(map[string]bool),
		inFlight:  make(map[string]bool),
	}
}

// Reset loads the chapter list of a newly opened video. completedIDs seeds
// the chapters the backend already knows are complete.
func (r *Resolver) Reset(chapters []Chapter, completedIDs []string) error {
	if err := Validate(chapters); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.chapters = append([]Chapter(nil), chapters...)
	r.index = 0
	r.completed = make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		r.completed[id] = true
	}
	r.inFlight = make(map[string]bool)
	r.suppressUntil = time.Time{}
	r.generation++
	return nil
}

// Index returns the active chapter, or -1 when the video has no chapters.
func (r *Resolver) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.chapters) == 0 {
		return -1
	}
	return r.index
}

func (r *Resolver) Chapters() []Chapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Chapter(nil), r.chapters...)
}

func (r *Resolver) Completed(chapterID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed[chapterID]
}

// Suppressed reports whether a recent Select is still holding off Observe.
func (r *Resolver) Suppressed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clk.Now().Before(r.suppressUntil)
}

// Observe feeds a clock reading. Outside the suppression window it completes
// the active chapter once t reaches its completion point, then moves to
// whichever chapter t falls in.
func (r *Resolver) Observe(t float64) {
	r.mu.Lock()
	if len(r.chapters) == 0 || r.clk.Now().Before(r.suppressUntil) {
		r.mu.Unlock()
		return
	}

	var toComplete *Chapter
	cur := r.chapters[r.index]
	if end, ok := r.completionPoint(r.index); ok && t >= end && !r.completed[cur.ID] && !r.inFlight[cur.ID] {
		r.inFlight[cur.ID] = true
		toComplete = &cur
	}

	next, ok := ActiveIndex(r.chapters, t)
	changed := ok && next != r.index
	if changed {
		r.index = next
	}
	gen := r.generation
	r.mu.Unlock()

	if toComplete != nil {
		r.complete(*toComplete, gen, "auto")
	}
	if changed {
		r.bus.Publish(events.ChapterIndexChanged{ChapterIndex: next, Source: events.SourceAuto})
	}
}

// completionPoint is where playback counts chapter i as watched: its stored
// end, or the next chapter's start when the stored end has drifted past it.
// Chapters without a stored end have none. Must be called with r.mu held.
func (r *Resolver) completionPoint(i int) (float64, bool) {
	end := r.chapters[i].EndSeconds
	if end <= 0 {
		return 0, false
	}
	if i+1 < len(r.chapters) {
		end = math.Min(end, r.chapters[i+1].StartSeconds)
	}
	return end, true
}

// Select makes chapter i active immediately, seeks to its start and resumes
// playback, and suppresses automatic resolution for the window.
func (r *Resolver) Select(i int) error {
	r.mu.Lock()
	if i < 0 || i >= len(r.chapters) {
		r.mu.Unlock()
		return ErrIndexOutOfRange
	}
	r.index = i
	r.suppressUntil = r.clk.Now().Add(r.window)
	start := r.chapters[i].StartSeconds
	r.mu.Unlock()

	r.bus.Publish(events.ChapterIndexChanged{ChapterIndex: i, Source: events.SourceUser})
	r.seeker.SeekTo(start)
	return nil
}

// MarkComplete completes chapter i on explicit user action. This is the only
// way to complete a chapter whose end is unknown.
func (r *Resolver) MarkComplete(i int) error {
	r.mu.Lock()
	if i < 0 || i >= len(r.chapters) {
		r.mu.Unlock()
		return ErrIndexOutOfRange
	}
	ch := r.chapters[i]
	if r.completed[ch.ID] || r.inFlight[ch.ID] {
		r.mu.Unlock()
		return nil
	}
	r.inFlight[ch.ID] = true
	gen := r.generation
	r.mu.Unlock()

	r.complete(ch, gen, "user")
	return nil
}

func (r *Resolver) complete(ch Chapter, gen uint64, trigger string) {
	r.completer.CompleteChapter(ch.ID, func(err error) {
		metrics.IncChapterCompletion(trigger, err)

		r.mu.Lock()
		if r.generation != gen {
			// The video changed while the call was in flight.
			r.mu.Unlock()
			return
		}
		delete(r.inFlight, ch.ID)
		if err == nil {
			r.completed[ch.ID] = true
		}
		r.mu.Unlock()

		if err == nil {
			r.bus.Publish(events.ChapterProgressUpdated{ChapterID: ch.ID, Completed: true})
		}
	})
}
