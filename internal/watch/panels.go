package watch

import (
	"sync"

	"github.com/coursetrack/coursetrack/internal/chapter"
	"github.com/coursetrack/coursetrack/internal/events"
)

// VideoRow is one playlist entry as the sidebar shows it.
type VideoRow struct {
	VideoID    string
	Active     bool
	Completed  bool
	Bookmarked bool
}

// Sidebar lists the course's videos. It learns about changes only through
// the bus and never reads another panel's state.
type Sidebar struct {
	mu     sync.Mutex
	rows   []VideoRow
	unsubs []func()
}

// MountSidebar subscribes a sidebar for videoIDs to bus.
func MountSidebar(bus *events.Bus, videoIDs []string) *Sidebar {
	s := &Sidebar{rows: make([]VideoRow, len(videoIDs))}
	for i, id := range videoIDs {
		s.rows[i].VideoID = id
	}

	s.unsubs = []func(){
		events.On(bus, func(e events.VideoIndexChanged) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i := range s.rows {
				s.rows[i].Active = i == e.VideoIndex
			}
		}),
		events.On(bus, func(e events.VideoProgressUpdated) {
			s.update(e.VideoID, func(r *VideoRow) { r.Completed = e.Completed })
		}),
		events.On(bus, func(e events.BookmarkUpdated) {
			s.update(e.VideoID, func(r *VideoRow) { r.Bookmarked = e.Bookmarked })
		}),
	}
	return s
}

// Seed sets a row from a backend snapshot.
func (s *Sidebar) Seed(videoID string, completed, bookmarked bool) {
	s.update(videoID, func(r *VideoRow) {
		r.Completed = completed
		r.Bookmarked = bookmarked
	})
}

func (s *Sidebar) Rows() []VideoRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]VideoRow(nil), s.rows...)
}

// Close unsubscribes from the bus.
func (s *Sidebar) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
}

func (s *Sidebar) update(videoID string, fn func(*VideoRow)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].VideoID == videoID {
			fn(&s.rows[i])
		}
	}
}

type ChapterRow struct {
	Chapter   chapter.Chapter
	Active    bool
	Completed bool
}

// ChapterSheet lists the chapters of the open video.
type ChapterSheet struct {
	mu     sync.Mutex
	rows   []ChapterRow
	unsubs []func()
}

func MountChapterSheet(bus *events.Bus) *ChapterSheet {
	s := &ChapterSheet{}
	s.unsubs = []func(){
		events.On(bus, func(e events.ChapterIndexChanged) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i := range s.rows {
				s.rows[i].Active = i == e.ChapterIndex
			}
		}),
		events.On(bus, func(e events.ChapterProgressUpdated) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i := range s.rows {
				if s.rows[i].Chapter.ID == e.ChapterID {
					s.rows[i].Completed = e.Completed
				}
			}
		}),
	}
	return s
}

// Load replaces the sheet's rows for a newly opened video. The first
// chapter starts active.
func (s *ChapterSheet) Load(chapters []chapter.Chapter, completedIDs []string) {
	done := make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		done[id] = true
	}
	rows := make([]ChapterRow, len(chapters))
	for i, ch := range chapters {
		rows[i] = ChapterRow{Chapter: ch, Active: i == 0, Completed: done[ch.ID]}
	}

	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

func (s *ChapterSheet) Rows() []ChapterRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChapterRow(nil), s.rows...)
}

func (s *ChapterSheet) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
}
