// Package toggle implements optimistic boolean toggles: the local value flips
// immediately, the backend is called, and a failed call reverts the value
// if no newer intent has replaced it.
package toggle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coursetrack/coursetrack/internal/metrics"
)

// Notifier surfaces a transient, user-visible failure notice.
type Notifier interface {
	Notify(message string)
}

// Call performs the backend write for the new value.
type Call func(ctx context.Context, next bool) error

// Hook runs after a successful write that is still the latest intent.
type Hook func(ctx context.Context, value bool)

// Toggle is one optimistic boolean.
type Toggle struct {
	name           string
	call           Call
	notifier       Notifier
	failureMessage string

	mu     sync.Mutex
	value  bool
	seq    uint64
	closed bool
	hooks  []Hook

	// confirmed is the last value the backend accepted, from the command
	// numbered confirmedSeq.
	confirmed    bool
	confirmedSeq uint64
}

func New(name string, initial bool, call Call, notifier Notifier, failureMessage string) *Toggle {
	return &Toggle{
		name:           name,
		call:           call,
		notifier:       notifier,
		failureMessage: failureMessage,
		value:          initial,
		confirmed:      initial,
	}
}

func (t *Toggle) Value() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// OnSuccess registers a hook run after each successful, still-current write.
func (t *Toggle) OnSuccess(h Hook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, h)
}

// Close detaches the toggle from its owner. Responses that arrive later are
// accepted but change nothing and notify nobody.
func (t *Toggle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Command is one optimistic change: Apply commits it locally, Rollback
// undoes it only while it is still the latest intent.
type Command struct {
	t      *Toggle
	decide func(cur bool) bool

	applied bool
	prev    bool
	next    bool
	seq     uint64
}

// Begin prepares a command that sets the toggle to next.
func (t *Toggle) Begin(next bool) *Command {
	return &Command{t: t, decide: func(bool) bool { return next }}
}

func (t *Toggle) beginFlip() *Command {
	return &Command{t: t, decide: func(cur bool) bool { return !cur }}
}

// Apply commits the change locally and records it as the latest intent.
func (c *Command) Apply() {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	c.prev = c.t.value
	c.next = c.decide(c.prev)
	c.t.value = c.next
	c.t.seq++
	c.seq = c.t.seq
	c.applied = true
}

// Next is the value the command applied.
func (c *Command) Next() bool { return c.next }

// Current reports whether no newer command has been applied since this one.
func (c *Command) Current() bool {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.applied && !c.t.closed && c.t.seq == c.seq
}

// Confirm records that the backend accepted the command's value. An older
// command confirming late does not override a newer confirmation.
func (c *Command) Confirm() {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if !c.applied || c.seq < c.t.confirmedSeq {
		return
	}
	c.t.confirmed = c.next
	c.t.confirmedSeq = c.seq
}

// Rollback restores the last backend-confirmed value and reports whether it
// did. It refuses when the toggle was closed or a newer command has been
// applied. The pre-command value is not used: it may be the optimistic
// value of an earlier request that never succeeded.
func (c *Command) Rollback() bool {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if !c.applied || c.t.closed || c.t.seq != c.seq || c.t.value != c.next {
		return false
	}
	c.t.value = c.t.confirmed
	return true
}

// Set drives one toggle to next through the full optimistic protocol.
func (t *Toggle) Set(ctx context.Context, next bool) error {
	return t.run(ctx, t.Begin(next))
}

// Flip inverts the current value through the full optimistic protocol.
func (t *Toggle) Flip(ctx context.Context) error {
	return t.run(ctx, t.beginFlip())
}

func (t *Toggle) run(ctx context.Context, cmd *Command) error {
	cmd.Apply()

	err := t.call(ctx, cmd.Next())
	if err != nil {
		slog.Warn("toggle: backend call failed", "toggle", t.name, "value", cmd.Next(), "error", err)
		if cmd.Rollback() {
			metrics.IncToggleRollback(t.name)
			if t.notifier != nil {
				t.notifier.Notify(t.failureMessage)
			}
		}
		return err
	}
	cmd.Confirm()

	if !cmd.Current() {
		return nil
	}
	t.mu.Lock()
	hooks := append([]Hook(nil), t.hooks...)
	t.mu.Unlock()
	for _, h := range hooks {
		h(ctx, cmd.Next())
	}
	return nil
}
