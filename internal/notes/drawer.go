// Package notes holds the notes drawer: timestamped annotations on the video
// being watched. New notes are stamped with the playback position and any
// note can seek the player back to its moment.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/validate"
)

var (
	ErrNotFound    = errors.New("note not found")
	ErrInvalidNote = errors.New("invalid note")
)

const SaveFailedMessage = "Failed to save note"

type Note struct {
	ID               string    `json:"id"`
	VideoID          string    `json:"videoId"`
	CourseID         string    `json:"courseId"`
	Body             string    `json:"body"`
	TimestampSeconds float64   `json:"timestampSeconds"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type NewNote struct {
	VideoID          string  `json:"videoId"`
	CourseID         string  `json:"courseId"`
	Body             string  `json:"body"`
	TimestampSeconds float64 `json:"timestampSeconds"`
}

type Client interface {
	ListNotes(ctx context.Context, videoID, courseID string) ([]Note, error)
	CreateNote(ctx context.Context, n NewNote) (Note, error)
	UpdateNote(ctx context.Context, id, body string) (Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// Clock is the slice of the playback clock the drawer needs.
type Clock interface {
	CurrentTime() float64
	SeekTo(seconds float64)
}

type Notifier interface {
	Notify(message string)
}

type Drawer struct {
	client   Client
	clock    Clock
	notifier Notifier
	videoID  string
	courseID string

	mu    sync.Mutex
	notes []Note
}

func NewDrawer(client Client, clock Clock, notifier Notifier, videoID, courseID string) *Drawer {
	return &Drawer{
		client:   client,
		clock:    clock,
		notifier: notifier,
		videoID:  videoID,
		courseID: courseID,
	}
}

// Load replaces the drawer contents with the collaborator's list.
func (d *Drawer) Load(ctx context.Context) error {
	list, err := d.client.ListNotes(ctx, d.videoID, d.courseID)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	sorted := append([]Note(nil), list...)
	sortNotes(sorted)

	d.mu.Lock()
	d.notes = sorted
	d.mu.Unlock()
	return nil
}

// Notes returns a copy ordered by timestamp.
func (d *Drawer) Notes() []Note {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Note(nil), d.notes...)
}

// Add creates a note anchored at the current playback position.
func (d *Drawer) Add(ctx context.Context, body string) (Note, error) {
	if msg := validate.NoteBody(body); msg != "" {
		return Note{}, fmt.Errorf("%w: %s", ErrInvalidNote, msg)
	}
	ts := d.clock.CurrentTime()
	if msg := validate.Timestamp(ts, "timestamp"); msg != "" {
		ts = 0
	}

	created, err := d.client.CreateNote(ctx, NewNote{
		VideoID:          d.videoID,
		CourseID:         d.courseID,
		Body:             body,
		TimestampSeconds: ts,
	})
	if err != nil {
		d.fail("create", "", err)
		return Note{}, fmt.Errorf("create note: %w", err)
	}

	d.mu.Lock()
	d.notes = append(d.notes, created)
	sortNotes(d.notes)
	d.mu.Unlock()
	return created, nil
}

// Edit replaces a note's body. The timestamp is never moved.
func (d *Drawer) Edit(ctx context.Context, id, body string) (Note, error) {
	if msg := validate.NoteBody(body); msg != "" {
		return Note{}, fmt.Errorf("%w: %s", ErrInvalidNote, msg)
	}
	if _, ok := d.find(id); !ok {
		return Note{}, ErrNotFound
	}

	updated, err := d.client.UpdateNote(ctx, id, body)
	if err != nil {
		d.fail("update", id, err)
		return Note{}, fmt.Errorf("update note: %w", err)
	}

	d.mu.Lock()
	for i := range d.notes {
		if d.notes[i].ID == id {
			d.notes[i] = updated
			break
		}
	}
	sortNotes(d.notes)
	d.mu.Unlock()
	return updated, nil
}

func (d *Drawer) Delete(ctx context.Context, id string) error {
	if _, ok := d.find(id); !ok {
		return ErrNotFound
	}
	if err := d.client.DeleteNote(ctx, id); err != nil {
		d.fail("delete", id, err)
		return fmt.Errorf("delete note: %w", err)
	}

	d.mu.Lock()
	for i := range d.notes {
		if d.notes[i].ID == id {
			d.notes = append(d.notes[:i], d.notes[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	return nil
}

// Jump seeks the player to the note's timestamp.
func (d *Drawer) Jump(id string) error {
	n, ok := d.find(id)
	if !ok {
		return ErrNotFound
	}
	d.clock.SeekTo(n.TimestampSeconds)
	return nil
}

func (d *Drawer) find(id string) (Note, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

func (d *Drawer) fail(op, id string, err error) {
	slog.Warn("notes: collaborator call failed", "op", op, "note_id", id, "video_id", d.videoID, "error", err)
	if d.notifier != nil {
		d.notifier.Notify(SaveFailedMessage)
	}
}

func sortNotes(list []Note) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].TimestampSeconds != list[j].TimestampSeconds {
			return list[i].TimestampSeconds < list[j].TimestampSeconds
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
