// Package watch composes the playback core for one visit to a course's
// watch page: the clock, chapter resolver, progress persister, toggles,
// notes drawer and the panels that observe them over the event bus.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursetrack/coursetrack/internal/api"
	"github.com/coursetrack/coursetrack/internal/chapter"
	"github.com/coursetrack/coursetrack/internal/clock"
	"github.com/coursetrack/coursetrack/internal/events"
	"github.com/coursetrack/coursetrack/internal/notes"
	"github.com/coursetrack/coursetrack/internal/playback"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/toggle"
)

var (
	ErrVideoOutOfRange = errors.New("watch: video index out of range")
	ErrClosed          = errors.New("watch: page closed")
	ErrSuperseded      = errors.New("watch: superseded by a newer selection")
)

// Backend is everything the page reads and writes remotely. *api.Client
// satisfies it.
type Backend interface {
	progress.Client
	toggle.BookmarkClient
	notes.Client
	VideoProgress(ctx context.Context, videoID string) (api.VideoProgress, error)
	CompletedChapters(ctx context.Context, videoID string) ([]string, error)
	Chapters(ctx context.Context, videoID string) ([]chapter.Chapter, error)
}

// Notifier surfaces transient failure notices. notify.Multi satisfies it.
type Notifier interface {
	Notify(message string)
}

type Config struct {
	CourseID string
	// VideoIDs is the course playlist in order.
	VideoIDs       []string
	Clock          clock.Clock
	Playback       playback.Config
	SuppressWindow time.Duration
	WriteTimeout   time.Duration
	Notifier       Notifier
}

// Page owns one watch page visit. Create it with NewPage and release it with
// Close.
type Page struct {
	backend  Backend
	courseID string
	videoIDs []string
	notifier Notifier

	bus       *events.Bus
	persister *progress.Persister
	clock     *playback.Clock
	resolver  *chapter.Resolver
	sidebar   *Sidebar
	sheet     *ChapterSheet
	unsubTick func()

	// swapMu serializes switching the open video across the clock, resolver
	// and panels so they always agree on it.
	swapMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	selectSeq  uint64
	index      int
	videoID    string
	resumeAt   float64
	bookmark   *toggle.Toggle
	completion *toggle.Toggle
	drawer     *notes.Drawer
}

func NewPage(backend Backend, cfg Config) *Page {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	p := &Page{
		backend:  backend,
		courseID: cfg.CourseID,
		videoIDs: append([]string(nil), cfg.VideoIDs...),
		notifier: cfg.Notifier,
		bus:      events.NewBus(),
		index:    -1,
	}
	p.persister = progress.NewPersister(backend, cfg.WriteTimeout)
	p.clock = playback.New(clk, cfg.Playback, p.persister)
	p.resolver = chapter.NewResolver(clk, p.bus, p.clock, p.persister, chapter.Config{SuppressWindow: cfg.SuppressWindow})
	p.sidebar = MountSidebar(p.bus, p.videoIDs)
	p.sheet = MountChapterSheet(p.bus)
	p.unsubTick = p.clock.OnTick(p.resolver.Observe)
	p.clock.Start()
	return p
}

// SelectVideo opens the video at index with player. The snapshot, chapters
// and completed chapters are fetched before anything changes; on failure
// the previous video stays open. When a later SelectVideo starts before
// this one finishes fetching, this one changes nothing and returns
// ErrSuperseded.
func (p *Page) SelectVideo(ctx context.Context, index int, player playback.Player) error {
	if index < 0 || index >= len(p.videoIDs) {
		return ErrVideoOutOfRange
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.selectSeq++
	seq := p.selectSeq
	p.mu.Unlock()
	videoID := p.videoIDs[index]

	var (
		snap      api.VideoProgress
		chapters  []chapter.Chapter
		completed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = p.backend.VideoProgress(gctx, videoID)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		chapters, err = p.backend.Chapters(gctx, videoID)
		if err != nil {
			return fmt.Errorf("load chapters: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		completed, err = p.backend.CompletedChapters(gctx, videoID)
		if err != nil {
			return fmt.Errorf("load completed chapters: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("open video %s: %w", videoID, err)
	}

	if err := chapter.Validate(chapters); err != nil {
		slog.Warn("watch: ignoring malformed chapters", "video_id", videoID, "error", err)
		chapters, completed = nil, nil
	}

	bookmark := toggle.NewBookmark(videoID, snap.Bookmarked, p.backend, p.clock, p.bus, p.notifier)
	completion := toggle.NewCompletion(videoID, snap.Completed, p.persister, p.bus, p.notifier,
		toggle.RemoveBookmarkOnComplete(bookmark))
	drawer := notes.NewDrawer(p.backend, p.clock, p.notifier, videoID, p.courseID)
	if err := drawer.Load(ctx); err != nil {
		slog.Warn("watch: notes unavailable", "video_id", videoID, "error", err)
	}

	p.swapMu.Lock()
	defer p.swapMu.Unlock()

	p.mu.Lock()
	if p.closed || p.selectSeq != seq {
		err := ErrClosed
		if !p.closed {
			err = ErrSuperseded
		}
		p.mu.Unlock()
		bookmark.Close()
		completion.Close()
		return err
	}
	oldBookmark, oldCompletion := p.bookmark, p.completion
	p.index = index
	p.videoID = videoID
	p.resumeAt = 0
	if !snap.Completed {
		p.resumeAt = snap.LastWatchedSeconds
	}
	p.bookmark = bookmark
	p.completion = completion
	p.drawer = drawer
	p.mu.Unlock()

	if oldBookmark != nil {
		oldBookmark.Close()
		oldCompletion.Close()
	}

	p.clock.Load(videoID, player)
	if err := p.resolver.Reset(chapters, completed); err != nil {
		return fmt.Errorf("reset chapters: %w", err)
	}
	p.sheet.Load(chapters, completed)
	p.sidebar.Seed(videoID, snap.Completed, snap.Bookmarked)
	p.bus.Publish(events.VideoIndexChanged{VideoIndex: index})
	return nil
}

// Resume seeks to the stored position of the open video, if any. Call it
// once the player reports ready.
func (p *Page) Resume() {
	p.mu.Lock()
	at := p.resumeAt
	p.mu.Unlock()
	if at > 0 {
		p.clock.SeekTo(at)
	}
}

// SetHidden reacts to page visibility. Hiding the page writes the position
// immediately since the tab may never come back.
func (p *Page) SetHidden(hidden bool) {
	if hidden {
		p.clock.Flush(progress.ReasonHidden)
	}
}

// Close stops all periodic work, writes the final position, detaches every
// panel and waits for outstanding writes.
func (p *Page) Close() {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	bookmark, completion := p.bookmark, p.completion
	p.mu.Unlock()

	p.unsubTick()
	p.clock.Close()
	if bookmark != nil {
		bookmark.Close()
		completion.Close()
	}
	p.sidebar.Close()
	p.sheet.Close()
	p.persister.Wait()
}

func (p *Page) Bus() *events.Bus            { return p.bus }
func (p *Page) Clock() *playback.Clock      { return p.clock }
func (p *Page) Resolver() *chapter.Resolver { return p.resolver }
func (p *Page) Sidebar() *Sidebar           { return p.sidebar }
func (p *Page) ChapterSheet() *ChapterSheet { return p.sheet }

// Index returns the open video's playlist index, or -1 before the first
// SelectVideo.
func (p *Page) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

func (p *Page) VideoID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoID
}

// Bookmark returns the open video's bookmark toggle, nil before SelectVideo.
func (p *Page) Bookmark() *toggle.Toggle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bookmark
}

func (p *Page) Completion() *toggle.Toggle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completion
}

func (p *Page) Notes() *notes.Drawer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawer
}
