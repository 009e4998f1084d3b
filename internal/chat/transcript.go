// Package chat implements the chat client: an append-only transcript and the
// submit/fetch/render cycle against the backend.
package chat

import (
	"slices"
	"sync"

	"github.com/diogo/querychat/internal/models"
)

// EventKind tells listeners what happened to the transcript
type EventKind int

const (
	EventAppend EventKind = iota
	EventRemove
)

// Event is delivered to transcript listeners after each mutation
type Event struct {
	Kind    EventKind
	Message models.Message
}

// Listener receives transcript events in mutation order. Listeners run once
// every lock is released, so they may call back into the transcript or the
// widget. Delivery happens on whichever mutating goroutine is draining the
// event queue, not necessarily the one that made the change.
type Listener func(Event)

// Transcript is an ordered message list owned by one widget.
// Messages are only ever appended, except for placeholders which are removed by ID.
type Transcript struct {
	mu        sync.RWMutex
	nextID    models.MessageID
	messages  []models.Message
	listeners []Listener

	// queue holds events not yet delivered; draining is set while a
	// goroutine delivers them
	queue    []Event
	draining bool
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message at the end and returns it with its assigned ID
func (t *Transcript) Append(sender models.Sender, kind models.Kind, content string) models.Message {
	return t.AppendMessage(models.Message{Sender: sender, Kind: kind, Content: content})
}

// AppendMessage adds m at the end. Its ID is assigned by the transcript.
func (t *Transcript) AppendMessage(m models.Message) models.Message {
	msg := t.add(m)
	t.flush()
	return msg
}

// Remove deletes the message with the given ID. It reports whether the
// message was found.
func (t *Transcript) Remove(id models.MessageID) bool {
	ok := t.drop(id)
	t.flush()
	return ok
}

// add appends m and queues its event without delivering it
func (t *Transcript) add(m models.Message) models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	m.ID = t.nextID
	t.messages = append(t.messages, m)
	t.queue = append(t.queue, Event{Kind: EventAppend, Message: m})
	return m
}

// drop removes a message and queues its event without delivering it
func (t *Transcript) drop(id models.MessageID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := slices.IndexFunc(t.messages, func(m models.Message) bool { return m.ID == id })
	if idx < 0 {
		return false
	}
	msg := t.messages[idx]
	t.messages = slices.Delete(t.messages, idx, idx+1)
	t.queue = append(t.queue, Event{Kind: EventRemove, Message: msg})
	return true
}

// flush delivers queued events unless another goroutine is already doing so.
// Events queued by listeners themselves are picked up by the same loop.
func (t *Transcript) flush() {
	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		return
	}
	t.draining = true

	for len(t.queue) > 0 {
		ev := t.queue[0]
		t.queue = t.queue[1:]
		listeners := t.listeners
		t.mu.Unlock()

		notify(listeners, ev)

		t.mu.Lock()
	}

	t.draining = false
	t.mu.Unlock()
}

// Messages returns a copy of the transcript in display order
func (t *Transcript) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Since returns the messages appended after the message with the given ID
func (t *Transcript) Since(id models.MessageID) []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.Message
	for _, m := range t.messages {
		if m.ID > id {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the newest message
func (t *Transcript) Last() (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return models.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Subscribe registers a listener for subsequent mutations
func (t *Transcript) Subscribe(l Listener) {
	if l == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	// Copy on write so notify can iterate without the lock
	listeners := make([]Listener, len(t.listeners), len(t.listeners)+1)
	copy(listeners, t.listeners)
	t.listeners = append(listeners, l)
}

func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}
