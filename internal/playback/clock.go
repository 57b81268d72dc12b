// Package playback owns the embedded player and exposes a polled readout of
// elapsed time. It is the only component allowed to talk to the player;
// everything else reads CurrentTime and commands SeekTo.
package playback

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/clock"
	"github.com/coursetrack/coursetrack/internal/progress"
)

// Player is the embedded video player.
type Player interface {
	Ready() bool
	CurrentTime() float64
	SeekTo(seconds float64)
	Play()
}

// State is the player's transport state as reported by the player.
type State int

const (
	StateUnstarted State = iota
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unstarted"
	}
}

// Saver receives resume-position writes. progress.Persister satisfies it.
type Saver interface {
	SaveTime(videoID string, seconds float64, reason progress.Reason) error
}

// Session is the ephemeral per-video playback state.
type Session struct {
	VideoRef       string
	ElapsedSeconds float64
	IsPlaying      bool
}

type Config struct {
	// SampleInterval drives the UI and chapter readout.
	SampleInterval time.Duration
	// PersistInterval drives write-behind while playing.
	PersistInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleInterval:  time.Second,
		PersistInterval: 5 * time.Second,
	}
}

// Clock polls the player on a fixed interval and caches the reading.
type Clock struct {
	clk   clock.Clock
	cfg   Config
	saver Saver

	mu        sync.Mutex
	player    Player
	session   Session
	listeners []tickListener
	nextID    uint64
	sample    *loop
	persist   *loop
	closed    bool

	// generation increments on every Load. The same player is usually
	// reused across videos, so it cannot identify a session by itself.
	generation uint64
}

type tickListener struct {
	id uint64
	fn func(seconds float64)
}

type loop struct {
	stop chan struct{}
	done chan struct{}
}

func New(clk clock.Clock, cfg Config, saver Saver) *Clock {
	defaults := DefaultConfig()
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaults.SampleInterval
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = defaults.PersistInterval
	}
	return &Clock{clk: clk, cfg: cfg, saver: saver}
}

// Start begins sampling the player. It is a no-op if already started.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sample != nil {
		return
	}
	c.sample = c.startLoop(c.cfg.SampleInterval, c.Sample)
}

// Load ends the current session, writing its final position against the
// old video, and starts a fresh one at zero for videoRef.
func (c *Clock) Load(videoRef string, p Player) {
	c.stopPersist()
	c.Flush(progress.ReasonUnload)

	c.mu.Lock()
	c.generation++
	c.player = p
	c.session = Session{VideoRef: videoRef}
	c.mu.Unlock()
}

// CurrentTime returns the last cached reading, or 0 when nothing is known.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ElapsedSeconds
}

func (c *Clock) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// OnTick registers fn to receive every new reading, including optimistic
// readings from SeekTo.
func (c *Clock) OnTick(fn func(seconds float64)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, tickListener{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			out := c.listeners[:0]
			for _, l := range c.listeners {
				if l.id != id {
					out = append(out, l)
				}
			}
			c.listeners = out
		})
	}
}

// Sample reads the player once and publishes the reading to tick listeners.
// A player that is missing, not ready or reports a non-finite time reads 0.
func (c *Clock) Sample() {
	c.mu.Lock()
	p, gen := c.player, c.generation
	c.mu.Unlock()

	seconds := 0.0
	if p != nil && p.Ready() {
		seconds = sanitize(p.CurrentTime())
	}

	c.mu.Lock()
	if c.generation != gen {
		// Another video was loaded while the player was being read.
		c.mu.Unlock()
		return
	}
	c.session.ElapsedSeconds = seconds
	listeners := append([]tickListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l.fn(seconds)
	}
}

// SeekTo jumps the player to seconds and resumes playback. The cache is
// updated before the player confirms so dependent panels do not lag. It is
// a no-op until a ready player is attached.
func (c *Clock) SeekTo(seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return
	}
	if seconds < 0 {
		seconds = 0
	}

	c.mu.Lock()
	p, gen := c.player, c.generation
	c.mu.Unlock()
	if p == nil || !p.Ready() {
		return
	}

	p.SeekTo(seconds)
	p.Play()

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.session.ElapsedSeconds = seconds
	listeners := append([]tickListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l.fn(seconds)
	}
}

// SetState reacts to player transport changes: playing starts the periodic
// persistence tick, anything else stops it and writes once immediately.
func (c *Clock) SetState(s State) {
	if s == StatePlaying {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.session.IsPlaying = true
		if c.persist == nil {
			c.persist = c.startLoop(c.cfg.PersistInterval, func() { c.Flush(progress.ReasonInterval) })
		}
		return
	}

	c.stopPersist()
	c.Flush(progress.ReasonPause)
}

// Flush writes the cached position now. Zero and invalid readings are
// refused by the saver and silently skipped here.
func (c *Clock) Flush(reason progress.Reason) {
	if c.saver == nil {
		return
	}
	snap := c.Snapshot()
	if snap.VideoRef == "" {
		return
	}
	err := c.saver.SaveTime(snap.VideoRef, snap.ElapsedSeconds, reason)
	if err != nil && !errors.Is(err, progress.ErrInvalidTime) {
		slog.Warn("playback: progress save not started", "video_id", snap.VideoRef, "reason", reason, "error", err)
	}
}

// Close stops all periodic work and writes the final position once.
func (c *Clock) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sample := c.sample
	c.sample = nil
	c.mu.Unlock()

	sample.halt()
	c.stopPersist()
	c.Flush(progress.ReasonUnload)
}

func (c *Clock) stopPersist() {
	c.mu.Lock()
	persist := c.persist
	c.persist = nil
	c.session.IsPlaying = false
	c.mu.Unlock()

	persist.halt()
}

// startLoop must be called with c.mu held. The ticker is created before the
// goroutine starts so it is registered by the time the caller returns.
func (c *Clock) startLoop(interval time.Duration, fn func()) *loop {
	l := &loop{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := c.clk.NewTicker(interval)
	go func() {
		defer close(l.done)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C():
				fn()
			}
		}
	}()
	return l
}

func (l *loop) halt() {
	if l == nil {
		return
	}
	close(l.stop)
	<-l.done
}

func sanitize(seconds float64) float64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return seconds
}
