package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/model"
	"github.com/sirupsen/logrus"
)

// EmptyNoteMessage is shown when the user submits a blank note
const EmptyNoteMessage = "Please enter a clinical note to summarize."

const unknownFailure = "An unknown error occurred while processing the clinical note."

// ErrBusy is returned when a summary is requested while one is in flight
var ErrBusy = errors.New("a summary request is already in progress")

// Phase is the lifecycle position of the current summary request
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON snapshots
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is one snapshot of the application state.
// Summary is non-nil only when Phase is Succeeded; Err is non-empty only when Phase is Failed.
type State struct {
	Phase     Phase                  `json:"phase"`
	Note      model.ClinicalNote     `json:"note"`
	Summary   *model.ClinicalSummary `json:"summary"`
	Err       string                 `json:"error,omitempty"`
	AttemptID string                 `json:"attemptId,omitempty"`
}

// IsLoading reports whether a request is in flight
func (s State) IsLoading() bool {
	return s.Phase == Loading
}

// Summarizer produces a summary for one note
type Summarizer interface {
	Summarize(ctx context.Context, note string) (*model.ClinicalSummary, error)
}

// Controller owns the note, the current summary and the request lifecycle.
// All methods are safe for concurrent use.
type Controller struct {
	client Summarizer

	mu        sync.Mutex
	state     State
	observers []func(State)
}

// NewController creates a controller in the Idle phase with an empty note
func NewController(client Summarizer) *Controller {
	return &Controller{client: client}
}

// State returns the current snapshot
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetNote replaces the note text wholesale. The phase is left alone.
func (c *Controller) SetNote(note model.ClinicalNote) {
	c.mu.Lock()
	c.state.Note = note
	c.mu.Unlock()
}

// Subscribe registers fn to receive every state transition.
// fn runs synchronously on the goroutine making the transition and must not call back into the controller.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// RequestSummary runs one summarization attempt for the current note and
// returns the settled state.
func (c *Controller) RequestSummary(ctx context.Context) (State, error) {
	st, done, err := c.begin(nil)
	if err != nil || done == nil {
		return st, err
	}
	return c.resolve(ctx, st), nil
}

// Submit validates the note and moves to Loading synchronously, then resolves
// the attempt in the background. The returned channel is closed once the
// attempt has settled; it is nil when nothing was started (validation failure).
func (c *Controller) Submit(ctx context.Context) (State, <-chan struct{}, error) {
	return c.submit(ctx, nil)
}

// RequestNote sets note and runs one attempt for it in a single step.
// While Loading it returns ErrBusy and the current note is kept.
func (c *Controller) RequestNote(ctx context.Context, note model.ClinicalNote) (State, error) {
	st, done, err := c.begin(&note)
	if err != nil || done == nil {
		return st, err
	}
	return c.resolve(ctx, st), nil
}

// SubmitNote is Submit for note, set under the same lock that starts the
// attempt. While Loading it returns ErrBusy and the current note is kept.
func (c *Controller) SubmitNote(ctx context.Context, note model.ClinicalNote) (State, <-chan struct{}, error) {
	return c.submit(ctx, &note)
}

func (c *Controller) submit(ctx context.Context, note *model.ClinicalNote) (State, <-chan struct{}, error) {
	st, done, err := c.begin(note)
	if err != nil || done == nil {
		return st, nil, err
	}

	go func() {
		defer close(done)
		c.resolve(ctx, st)
	}()

	return st, done, nil
}

// begin optionally replaces the note, then performs validation and the
// Loading transition, all under the lock.
// A nil channel means the attempt ended synchronously.
func (c *Controller) begin(note *model.ClinicalNote) (State, chan struct{}, error) {
	c.mu.Lock()

	if c.state.Phase == Loading {
		st := c.state
		c.mu.Unlock()
		return st, nil, ErrBusy
	}
	if note != nil {
		c.state.Note = *note
	}

	if strings.TrimSpace(c.state.Note) == "" {
		next := c.transitionLocked(Failed, nil, EmptyNoteMessage, "")
		c.mu.Unlock()
		c.notify(next)
		return next, nil, nil
	}

	next := c.transitionLocked(Loading, nil, "", uuid.NewString())
	c.mu.Unlock()
	c.notify(next)

	return next, make(chan struct{}), nil
}

// resolve calls the client for the attempt in loading and settles it.
// The loading phase always ends, including when the client panics.
func (c *Controller) resolve(ctx context.Context, loading State) (final State) {
	log := logger.WithFields(logrus.Fields{
		"attempt_id": loading.AttemptID,
		"note_chars": len(loading.Note),
	})
	start := time.Now()

	var (
		summary *model.ClinicalSummary
		errMsg  string
	)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Summarizer panicked")
			summary, errMsg = nil, unknownFailure
		}

		c.mu.Lock()
		if summary != nil {
			final = c.transitionLocked(Succeeded, summary, "", loading.AttemptID)
		} else {
			if errMsg == "" {
				errMsg = unknownFailure
			}
			final = c.transitionLocked(Failed, nil, errMsg, loading.AttemptID)
		}
		c.mu.Unlock()
		c.notify(final)

		log.WithFields(logrus.Fields{
			"phase":       final.Phase.String(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Summary request settled")
	}()

	log.Info("Summary request started")

	result, err := c.client.Summarize(ctx, loading.Note)
	switch {
	case err != nil:
		errMsg = err.Error()
	case result == nil:
		errMsg = unknownFailure
	default:
		summary = result
	}
	return final
}

// transitionLocked replaces everything but the note in one step. Caller holds mu.
func (c *Controller) transitionLocked(phase Phase, summary *model.ClinicalSummary, errMsg, attemptID string) State {
	c.state = State{
		Phase:     phase,
		Note:      c.state.Note,
		Summary:   summary,
		Err:       errMsg,
		AttemptID: attemptID,
	}
	return c.state
}

func (c *Controller) notify(st State) {
	c.mu.Lock()
	observers := make([]func(State), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}
