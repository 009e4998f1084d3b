package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/querychat/internal/models"
)

func TestTranscript_AppendAssignsIncreasingIDs(t *testing.T) {
	tr := NewTranscript()

	a := tr.Append(models.SenderUser, models.KindText, "a")
	b := tr.Append(models.SenderBot, models.KindText, "b")

	assert.Equal(t, models.MessageID(1), a.ID)
	assert.Greater(t, b.ID, a.ID)
	assert.Equal(t, 2, tr.Len())

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Content)
}

func TestTranscript_Remove(t *testing.T) {
	tr := NewTranscript()
	a := tr.Append(models.SenderBot, models.KindText, "a")
	b := tr.Append(models.SenderBot, models.KindText, "b")
	c := tr.Append(models.SenderBot, models.KindText, "c")

	assert.True(t, tr.Remove(b.ID))
	assert.False(t, tr.Remove(b.ID), "second removal must report not found")

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, a.ID, msgs[0].ID)
	assert.Equal(t, c.ID, msgs[1].ID)

	d := tr.Append(models.SenderBot, models.KindText, "d")
	assert.Greater(t, d.ID, c.ID, "ids are never reused")
}

func TestTranscript_MessagesIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(models.SenderBot, models.KindText, "a")

	msgs := tr.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "a", tr.Messages()[0].Content)
}

func TestTranscript_Since(t *testing.T) {
	tr := NewTranscript()
	first := tr.Append(models.SenderBot, models.KindText, "greeting")
	tr.Append(models.SenderUser, models.KindText, "q")
	tr.Append(models.SenderBot, models.KindText, "answer")

	since := tr.Since(first.ID)
	require.Len(t, since, 2)
	assert.Equal(t, "q", since[0].Content)
	assert.Equal(t, "answer", since[1].Content)

	_, ok := NewTranscript().Last()
	assert.False(t, ok)
}

func TestTranscript_Listeners(t *testing.T) {
	tr := NewTranscript()

	var events []Event
	tr.Subscribe(func(ev Event) {
		events = append(events, ev)
		// Listeners may read the transcript without deadlocking
		_ = tr.Len()
	})
	tr.Subscribe(nil)

	m := tr.Append(models.SenderBot, models.KindText, "a")
	tr.Remove(m.ID)
	tr.Remove(m.ID)

	require.Len(t, events, 2)
	assert.Equal(t, EventAppend, events[0].Kind)
	assert.Equal(t, EventRemove, events[1].Kind)
	assert.Equal(t, m.ID, events[1].Message.ID)
}

func TestTranscript_ListenerAppendsAreDeliveredInOrder(t *testing.T) {
	tr := NewTranscript()

	var seen []string
	tr.Subscribe(func(ev Event) {
		seen = append(seen, ev.Message.Content)
		if ev.Message.Content == "a" {
			tr.Append(models.SenderBot, models.KindText, "reply")
		}
	})

	tr.Append(models.SenderUser, models.KindText, "a")
	tr.Append(models.SenderUser, models.KindText, "b")

	assert.Equal(t, []string{"a", "reply", "b"}, seen)
	assert.Equal(t, []string{"a", "reply", "b"}, contents(tr.Messages()))
}
