package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/clinsum/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	mu      sync.Mutex
	calls   []string
	summary *model.ClinicalSummary
	err     error
	panicV  interface{}
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSummarizer) Summarize(ctx context.Context, note string) (*model.ClinicalSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, note)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.summary, f.err
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func chestPainSummary() *model.ClinicalSummary {
	return &model.ClinicalSummary{
		Subjective:      "Patient reports chest pain for 2 days. Denies fever.",
		IsEmergency:     true,
		EmergencyReason: "Chest pain",
		NlpInsights: model.NlpInsights{
			Negations:           []string{"denies fever"},
			TemporalInformation: []string{"for 2 days"},
		},
	}
}

func TestRequestSummary_EmptyNoteNeverCallsClient(t *testing.T) {
	for _, note := range []string{"", "   ", "\n\t "} {
		fake := &fakeSummarizer{summary: chestPainSummary()}
		c := NewController(fake)

		var seen []Phase
		c.Subscribe(func(s State) { seen = append(seen, s.Phase) })

		c.SetNote(note)
		st, err := c.RequestSummary(context.Background())
		require.NoError(t, err)

		assert.Equal(t, Failed, st.Phase)
		assert.Equal(t, EmptyNoteMessage, st.Err)
		assert.Nil(t, st.Summary)
		assert.Equal(t, 0, fake.callCount(), "note %q must not reach the client", note)
		assert.Equal(t, []Phase{Failed}, seen, "validation must not pass through Loading")
	}
}

func TestRequestSummary_Success(t *testing.T) {
	want := chestPainSummary()
	fake := &fakeSummarizer{summary: want}
	c := NewController(fake)

	c.SetNote("Patient reports chest pain for 2 days. Denies fever.")
	st, err := c.RequestSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Succeeded, st.Phase)
	assert.Same(t, want, st.Summary)
	assert.Empty(t, st.Err)
	assert.NotEmpty(t, st.AttemptID)
	assert.Equal(t, []string{"Patient reports chest pain for 2 days. Denies fever."}, fake.calls)
	assert.Equal(t, st, c.State())
}

func TestRequestSummary_FailureMessage(t *testing.T) {
	fake := &fakeSummarizer{err: errors.New("Failed to process the clinical note. Reason: timeout")}
	c := NewController(fake)

	c.SetNote("note")
	st, err := c.RequestSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, "Failed to process the clinical note. Reason: timeout", st.Err)
	assert.Nil(t, st.Summary)
	assert.False(t, st.IsLoading())
}

func TestRequestSummary_PanicSettlesAsFailed(t *testing.T) {
	fake := &fakeSummarizer{panicV: "boom"}
	c := NewController(fake)

	c.SetNote("note")
	st, err := c.RequestSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, unknownFailure, st.Err)
	assert.Equal(t, Failed, c.State().Phase)
}

func TestRequestSummary_NilSummaryWithoutError(t *testing.T) {
	c := NewController(&fakeSummarizer{})

	c.SetNote("note")
	st, err := c.RequestSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, unknownFailure, st.Err)
}

func TestSubmit_LoadingVisibleUntilSettled(t *testing.T) {
	fake := &fakeSummarizer{
		summary: chestPainSummary(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(fake)
	c.SetNote("note")

	st, done, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, Loading, st.Phase)

	<-fake.entered
	assert.True(t, c.State().IsLoading())
	assert.Nil(t, c.State().Summary)

	close(fake.gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("attempt did not settle")
	}

	final := c.State()
	assert.Equal(t, Succeeded, final.Phase)
	assert.Equal(t, st.AttemptID, final.AttemptID)
}

func TestSubmit_RejectsWhileLoading(t *testing.T) {
	fake := &fakeSummarizer{
		summary: chestPainSummary(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(fake)
	c.SetNote("note")

	_, done, err := c.Submit(context.Background())
	require.NoError(t, err)
	<-fake.entered

	st, err := c.RequestSummary(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Loading, st.Phase)

	_, again, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, again)

	close(fake.gate)
	<-done
	assert.Equal(t, 1, fake.callCount())
}

func TestSubmit_ValidationFailureReturnsNilChannel(t *testing.T) {
	c := NewController(&fakeSummarizer{})

	st, done, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, EmptyNoteMessage, st.Err)
}

func TestSecondRequest_ClearsPriorResultBeforeLoading(t *testing.T) {
	fake := &fakeSummarizer{summary: chestPainSummary()}
	c := NewController(fake)
	c.SetNote("first note")

	_, err := c.RequestSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, Succeeded, c.State().Phase)

	var transitions []State
	c.Subscribe(func(s State) { transitions = append(transitions, s) })

	fake.summary = nil
	fake.err = errors.New("Failed to process the clinical note. Reason: timeout")
	c.SetNote("second note")
	_, err = c.RequestSummary(context.Background())
	require.NoError(t, err)

	require.Len(t, transitions, 2)
	assert.Equal(t, Loading, transitions[0].Phase)
	assert.Nil(t, transitions[0].Summary, "stale summary visible during loading")
	assert.Empty(t, transitions[0].Err)
	assert.Equal(t, Failed, transitions[1].Phase)
	assert.Nil(t, transitions[1].Summary)

	// and back from Failed to Succeeded
	transitions = nil
	fake.err = nil
	fake.summary = chestPainSummary()
	_, err = c.RequestSummary(context.Background())
	require.NoError(t, err)

	require.Len(t, transitions, 2)
	assert.Empty(t, transitions[0].Err, "stale error visible during loading")
	assert.Equal(t, Succeeded, transitions[1].Phase)
}

func TestStateInvariants(t *testing.T) {
	fake := &fakeSummarizer{summary: chestPainSummary()}
	c := NewController(fake)

	check := func(s State) {
		assert.Equal(t, s.Phase == Succeeded, s.Summary != nil, "summary present iff succeeded (%s)", s.Phase)
		assert.Equal(t, s.Phase == Failed, s.Err != "", "error present iff failed (%s)", s.Phase)
	}
	c.Subscribe(check)

	for _, note := range []string{"", "a", " ", "b"} {
		c.SetNote(note)
		_, err := c.RequestSummary(context.Background())
		require.NoError(t, err)
	}
}

func TestSetNote_KeepsPhase(t *testing.T) {
	c := NewController(&fakeSummarizer{summary: chestPainSummary()})
	c.SetNote("note")
	_, err := c.RequestSummary(context.Background())
	require.NoError(t, err)

	c.SetNote("edited")
	st := c.State()
	assert.Equal(t, "edited", st.Note)
	assert.Equal(t, Succeeded, st.Phase)
	assert.NotNil(t, st.Summary)
}

func TestPhase_MarshalText(t *testing.T) {
	b, err := Loading.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "loading", string(b))
	assert.Equal(t, "phase(9)", Phase(9).String())
}

func TestSubmitNote_BusyKeepsNote(t *testing.T) {
	fake := &fakeSummarizer{
		summary: chestPainSummary(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(fake)

	st, done, err := c.SubmitNote(context.Background(), "Patient reports chest pain for 2 days.")
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, Loading, st.Phase)
	assert.Equal(t, "Patient reports chest pain for 2 days.", st.Note)
	<-fake.entered

	_, again, err := c.SubmitNote(context.Background(), "replaced")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, again)

	_, err = c.RequestNote(context.Background(), "replaced too")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "Patient reports chest pain for 2 days.", c.State().Note)

	close(fake.gate)
	<-done

	final := c.State()
	assert.Equal(t, Succeeded, final.Phase)
	assert.Equal(t, "Patient reports chest pain for 2 days.", final.Note, "summary stays paired with its note")
	assert.Equal(t, []string{"Patient reports chest pain for 2 days."}, fake.calls)
}

func TestRequestNote_SetsNoteAndValidates(t *testing.T) {
	fake := &fakeSummarizer{summary: chestPainSummary()}
	c := NewController(fake)

	st, err := c.RequestNote(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, EmptyNoteMessage, st.Err)
	assert.Zero(t, fake.callCount())

	st, err = c.RequestNote(context.Background(), "BP 150/95")
	require.NoError(t, err)
	assert.Equal(t, Succeeded, st.Phase)
	assert.Equal(t, "BP 150/95", st.Note)
}

func TestSubscribe_ObserverListCopiedBeforeNotify(t *testing.T) {
	c := NewController(&fakeSummarizer{summary: chestPainSummary()})
	c.SetNote("note")

	var first, second []Phase
	c.Subscribe(func(s State) { first = append(first, s.Phase) })
	c.Subscribe(func(s State) { second = append(second, s.Phase) })

	_, err := c.RequestSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Phase{Loading, Succeeded}, first)
	assert.Equal(t, first, second)
}
