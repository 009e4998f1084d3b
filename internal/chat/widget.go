package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/logging"
	"github.com/diogo/querychat/internal/models"
)

// Backend answers a query. api.Client satisfies it.
type Backend interface {
	Query(ctx context.Context, query string) (*models.ChatResponse, error)
}

// Input is a text field the widget reads from and clears on submit.
// *textarea.Model satisfies it.
type Input interface {
	Value() string
	Reset()
}

// RequestID identifies one submission from send to completion
type RequestID string

// Pending is a submission whose placeholder is on screen
type Pending struct {
	ID          RequestID
	Query       string
	Placeholder models.MessageID
}

// Option configures a Widget
type Option func(*Widget)

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Widget) {
		w.logger = logging.OrNop(logger)
	}
}

// WithTranscript makes the widget render into an existing transcript
func WithTranscript(t *Transcript) Option {
	return func(w *Widget) {
		if t != nil {
			w.transcript = t
		}
	}
}

// Widget is one chat client instance: its transcript plus the requests in flight
type Widget struct {
	backend    Backend
	transcript *Transcript
	logger     *zap.Logger

	// mu serializes Begin and Complete so each response renders as one block
	mu      sync.Mutex
	pending map[RequestID]models.MessageID
}

// New creates a widget and appends the greeting
func New(backend Backend, opts ...Option) *Widget {
	w := &Widget{
		backend:    backend,
		transcript: NewTranscript(),
		logger:     logging.Nop(),
		pending:    make(map[RequestID]models.MessageID),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.transcript.Append(models.SenderBot, models.KindText, models.TextGreeting)
	return w
}

// Transcript returns the widget's message list
func (w *Widget) Transcript() *Transcript {
	return w.transcript
}

// InFlight returns the number of submissions awaiting a response
func (w *Widget) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Begin records a submission: it appends the user message and the
// placeholder. It returns false and changes nothing when text is blank.
func (w *Widget) Begin(text string) (Pending, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Pending{}, false
	}

	defer w.transcript.flush()
	w.mu.Lock()
	defer w.mu.Unlock()

	w.transcript.add(models.Message{Sender: models.SenderUser, Kind: models.KindText, Content: text})
	placeholder := w.transcript.add(models.Message{
		Sender:  models.SenderBot,
		Kind:    models.KindText,
		Content: models.TextProcessing,
		Status:  models.StatusPlaceholder,
	})

	p := Pending{
		ID:          RequestID(uuid.NewString()),
		Query:       text,
		Placeholder: placeholder.ID,
	}
	w.pending[p.ID] = p.Placeholder

	w.logger.Debug("submission started", zap.String("request_id", string(p.ID)))
	return p, true
}

// BeginInput reads and clears in, then calls Begin
func (w *Widget) BeginInput(in Input) (Pending, bool) {
	text := in.Value()
	if strings.TrimSpace(text) == "" {
		return Pending{}, false
	}
	in.Reset()
	return w.Begin(text)
}

// Exchange sends the pending query to the backend. It touches no widget
// state, so front-ends may run it off their event loop.
func (w *Widget) Exchange(ctx context.Context, p Pending) (*models.ChatResponse, error) {
	return w.backend.Query(ctx, p.Query)
}

// Complete renders the outcome of a request and returns the messages it
// appended. Unknown or already completed ids are ignored. Listeners hear about
// the whole block once the widget lock is released.
func (w *Widget) Complete(id RequestID, resp *models.ChatResponse, err error) []models.Message {
	defer w.transcript.flush()
	w.mu.Lock()
	defer w.mu.Unlock()

	placeholder, ok := w.pending[id]
	if !ok {
		w.logger.Debug("completion for unknown request", zap.String("request_id", string(id)))
		return nil
	}
	delete(w.pending, id)
	w.transcript.drop(placeholder)

	if err == nil && resp == nil {
		err = apierrors.NewParseError("empty response", "")
	}
	if err != nil {
		w.logger.Error("request failed",
			zap.String("request_id", string(id)),
			zap.Int("status", apierrors.GetHTTPStatus(err)),
			zap.Bool("timeout", apierrors.IsTimeoutError(err)),
			zap.Error(err),
		)
		return []models.Message{w.say(models.KindText, models.TextGenericError, models.StatusFailure)}
	}

	if resp.HasError() {
		w.logger.Info("backend reported error",
			zap.String("request_id", string(id)),
			zap.Int("status", resp.StatusCode),
			zap.String("error", resp.Error),
		)
		return []models.Message{w.say(models.KindText, models.BackendErrPrefix+resp.Error, models.StatusBackendError)}
	}

	var out []models.Message
	if viz := resp.Visualization; viz.HasImage() {
		out = append(out, w.say(models.KindImage, viz.Image, models.StatusNone))
		if viz.Description != "" {
			out = append(out, w.say(models.KindText, viz.Description, models.StatusNone))
		}
	}

	summary := resp.Summary
	if summary == "" {
		summary = models.TextNoSummary
	}
	out = append(out, w.say(models.KindText, summary, models.StatusNone))

	return out
}

// say queues a bot message; the caller holds w.mu and flushes afterwards
func (w *Widget) say(kind models.Kind, content string, status models.Status) models.Message {
	return w.transcript.add(models.Message{Sender: models.SenderBot, Kind: kind, Content: content, Status: status})
}

// Submit runs the whole cycle for one line of text. The exchange runs on its
// own goroutine; the returned Submission reports when rendering is done.
func (w *Widget) Submit(ctx context.Context, text string) *Submission {
	p, ok := w.Begin(text)
	return w.start(ctx, p, ok)
}

// SubmitInput is Submit reading from, and clearing, an input field
func (w *Widget) SubmitInput(ctx context.Context, in Input) *Submission {
	p, ok := w.BeginInput(in)
	return w.start(ctx, p, ok)
}

func (w *Widget) start(ctx context.Context, p Pending, ok bool) *Submission {
	s := &Submission{done: make(chan struct{})}
	if !ok {
		close(s.done)
		return s
	}

	s.ID = p.ID
	s.Accepted = true

	go func() {
		defer close(s.done)
		resp, err := w.Exchange(ctx, p)
		s.messages = w.Complete(p.ID, resp, err)
		s.err = err
	}()

	return s
}

// Submission tracks one Submit call
type Submission struct {
	// ID is empty when the submission was rejected as blank
	ID       RequestID
	Accepted bool

	done     chan struct{}
	messages []models.Message
	err      error
}

// Done is closed once the response has been rendered
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the response has been rendered or ctx ends
func (s *Submission) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the bot messages the response produced. Valid after Done.
func (s *Submission) Messages() []models.Message {
	select {
	case <-s.done:
		return s.messages
	default:
		return nil
	}
}

// Err returns the transport or parse failure, if any. Valid after Done.
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
