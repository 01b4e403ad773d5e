package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/autoparts-voice-agent/internal/audit"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/internal/observability/metrics"
	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

const testCall = "CA123"

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type harness struct {
	machine *Machine
	store   *fakeStore
	leads   *leads.InMemoryRepository
	audit   *recordingAudit
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store: newFakeStore(),
		leads: leads.NewInMemoryRepository(),
		audit: &recordingAudit{},
	}
	opts = append([]Option{
		WithAudit(h.audit),
		WithMetrics(metrics.NewDialogueMetrics(prometheus.NewRegistry())),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	h.machine = NewMachine(h.store, nil, h.leads, logging.New("error"), opts...)
	return h
}

func (h *harness) start(t *testing.T, callerPhone string) Reply {
	t.Helper()
	reply, err := h.machine.Start(context.Background(), testCall, callerPhone)
	require.NoError(t, err)
	return reply
}

func (h *harness) say(t *testing.T, utterance string) Reply {
	t.Helper()
	reply, err := h.machine.Handle(context.Background(), Turn{CallID: testCall, Utterance: utterance})
	require.NoError(t, err)
	return reply
}

// advanceTo drives a call from the start through the happy path until step.
func (h *harness) advanceTo(t *testing.T, step Step) {
	t.Helper()
	h.start(t, "")
	script := []string{"John Smith", "9876543210", "yes", "john@example.com", "110001", "yes", "brake pads", "Honda", "Civic", "2018", "I don't know"}
	for _, utterance := range script {
		if h.store.state(testCall).Step == step {
			return
		}
		h.say(t, utterance)
	}
	require.Equal(t, step, h.store.state(testCall).Step)
}

func TestStartGreetsAndMovesToName(t *testing.T) {
	h := newHarness(t)
	reply := h.start(t, "+91 98765 43210")

	assert.Equal(t, promptWelcome, reply.Prompt)
	assert.Equal(t, StepName, reply.Step)
	assert.True(t, reply.Continue)

	st := h.store.state(testCall)
	assert.Equal(t, StepName, st.Step)
	assert.Equal(t, "9876543210", st.CallerPhone)
	assert.Equal(t, fixedNow, st.StartedAt)
}

func TestStartResetsExistingSession(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepZip)

	reply := h.start(t, "")
	assert.Equal(t, StepName, reply.Step)
	st := h.store.state(testCall)
	assert.Empty(t, st.Slots)
	assert.Zero(t, st.Turns)
}

func TestHappyPathProducesLead(t *testing.T) {
	h := newHarness(t)
	h.start(t, "")

	script := []struct {
		utterance string
		next      Step
	}{
		{"John Smith", StepMobile},
		{"9876543210", StepMobileConfirm},
		{"yes", StepEmail},
		{"john@example.com", StepZip},
		{"110001", StepZipConfirm},
		{"yes", StepPart},
		{"brake pads", StepMake},
		{"Honda", StepModel},
		{"Civic", StepYear},
		{"2018", StepTrim},
		{"I don't know", StepFinalConfirm},
		{"yes", StepEnd},
	}

	var reply Reply
	for _, tt := range script {
		reply = h.say(t, tt.utterance)
		require.Equal(t, tt.next, reply.Step, "after %q", tt.utterance)
	}

	assert.False(t, reply.Continue)
	assert.Equal(t, promptLeadSaved, reply.Prompt)
	require.NotEmpty(t, reply.LeadID)

	lead, err := h.leads.GetByID(context.Background(), reply.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "John Smith", lead.ClientName)
	assert.Equal(t, "9876543210", lead.PhoneNumber)
	assert.Equal(t, "john@example.com", lead.Email)
	assert.Equal(t, "110001", lead.Zip)
	assert.Equal(t, "brake pads", lead.PartRequested)
	assert.Equal(t, "Honda", lead.Make)
	assert.Equal(t, "Civic", lead.Model)
	assert.Equal(t, "2018", lead.Year)
	assert.Equal(t, slots.Unknown, lead.Trim)
	assert.Equal(t, leads.StatusQuoted, lead.Status)
	assert.Equal(t, testCall, lead.CallID)

	st := h.store.state(testCall)
	assert.True(t, st.LeadSaved)
	assert.True(t, st.Slots.Flag(slots.PhoneConfirmed))
	assert.True(t, st.Slots.Flag(slots.ZipConfirmed))
	assert.Equal(t, 12, st.Turns)
	assert.Contains(t, h.audit.types(), audit.EventLeadSaved)
}

func TestTerminalStepDoesNotChangeState(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepFinalConfirm)
	h.say(t, "yes")
	puts := h.store.puts

	reply := h.say(t, "hello?")
	assert.Equal(t, StepEnd, reply.Step)
	assert.False(t, reply.Continue)
	assert.Equal(t, promptGoodbye, reply.Prompt)
	assert.Equal(t, puts, h.store.puts)
	assert.Equal(t, 1, h.leads.Len())
}

func TestSaveLeadRunsOnce(t *testing.T) {
	h := newHarness(t)
	st := NewConversationState(testCall)
	st.Step = StepFinalConfirm
	st.LeadSaved = true
	st.LeadID = "existing"
	st.Slots.Set(slots.Phone, "9876543210")
	h.store.seed(st)

	reply := h.say(t, "yes")
	assert.Equal(t, StepEnd, reply.Step)
	assert.Equal(t, promptLeadSaved, reply.Prompt)
	assert.Equal(t, "existing", reply.LeadID)
	assert.Zero(t, h.leads.Len())
}

func TestValidPhoneAlwaysGoesToConfirmation(t *testing.T) {
	for _, utterance := range []string{"9876543210", "my number is 98765 43210", "+91 98765-43210", "call me on 0 9876543210"} {
		t.Run(utterance, func(t *testing.T) {
			h := newHarness(t)
			h.advanceTo(t, StepMobile)

			reply := h.say(t, utterance)
			assert.Equal(t, StepMobileConfirm, reply.Step)
			assert.Equal(t, "9876543210", h.store.state(testCall).Slots.Value(slots.Phone))
			assert.Contains(t, reply.Prompt, "98765 43210")
		})
	}
}

func TestMobileUsesCallerID(t *testing.T) {
	h := newHarness(t)
	h.start(t, "+919812345678")
	h.say(t, "John Smith")

	reply := h.say(t, "use this number")
	assert.Equal(t, StepMobileConfirm, reply.Step)
	assert.Equal(t, "9812345678", h.store.state(testCall).Slots.Value(slots.Phone))
}

func TestDeniedCallerIDIsNotReused(t *testing.T) {
	h := newHarness(t)
	h.start(t, "+919812345678")
	h.say(t, "John Smith")
	h.say(t, "this one")

	reply := h.say(t, "no")
	assert.Equal(t, StepMobile, reply.Step)
	st := h.store.state(testCall)
	assert.False(t, st.Slots.Filled(slots.Phone))
	assert.True(t, st.CallerPhoneDeclined)

	reply = h.say(t, "umm")
	assert.Equal(t, StepMobile, reply.Step, "the declined caller ID must not be captured again")
	assert.Equal(t, missedPrompts[StepMobile], reply.Prompt)
}

func TestRepeatedDenialsNeverLeakPhone(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepMobile)

	for i := 0; i < 3; i++ {
		h.say(t, fmt.Sprintf("98765432%02d", i))
		reply := h.say(t, "no that is wrong")
		require.Equal(t, StepMobile, reply.Step)
		st := h.store.state(testCall)
		require.False(t, st.Slots.Filled(slots.Phone))
		require.False(t, st.Slots.Flag(slots.PhoneConfirmed))
	}

	h.say(t, "9876543210")
	h.say(t, "yes")
	st := h.store.state(testCall)
	assert.Equal(t, "9876543210", st.Slots.Value(slots.Phone))
	assert.True(t, st.Slots.Flag(slots.PhoneConfirmed))
}

func TestMobileFailuresOfferTransfer(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepMobile)

	for i := 1; i <= 2; i++ {
		reply := h.say(t, "I am not sure")
		require.Equal(t, StepMobile, reply.Step)
		require.Equal(t, i, h.store.state(testCall).RetryCounts[string(slots.Phone)])
	}

	reply := h.say(t, "hmm")
	assert.Equal(t, StepOfferTransfer, reply.Step)
	assert.Equal(t, exhaustedPrompts[StepMobile], reply.Prompt)
	st := h.store.state(testCall)
	assert.Equal(t, StepMobile, st.TransferFrom)
	assert.Zero(t, st.RetryCounts[string(slots.Phone)])
	assert.Contains(t, h.audit.types(), audit.EventTransferOffered)
}

func TestRetryCounterResetsOnCapture(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepEmail)

	h.say(t, "john at")
	h.say(t, "example")
	assert.Equal(t, 2, h.store.state(testCall).RetryCounts[string(slots.Email)])

	reply := h.say(t, "john at example dot com")
	assert.Equal(t, StepZip, reply.Step)
	st := h.store.state(testCall)
	assert.Equal(t, "john@example.com", st.Slots.Value(slots.Email))
	assert.NotContains(t, st.RetryCounts, string(slots.Email))
}

func TestSpokenEmailKeepsLeadingWordsOut(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepEmail)

	reply := h.say(t, "my email is john at example dot com")
	assert.Equal(t, StepZip, reply.Step)
	assert.Contains(t, reply.Prompt, "Got it, john@example.com.")
	assert.Equal(t, "john@example.com", h.store.state(testCall).Slots.Value(slots.Email))
}

func TestOfferTransferAccept(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepPart)
	for i := 0; i < 3; i++ {
		h.say(t, "")
	}
	require.Equal(t, StepOfferTransfer, h.store.state(testCall).Step)

	reply := h.say(t, "yes please")
	assert.Equal(t, StepEnd, reply.Step)
	assert.True(t, reply.Transfer)
	assert.False(t, reply.Continue)
	assert.Equal(t, promptTransferring, reply.Prompt)
	assert.Contains(t, h.audit.types(), audit.EventTransferAccepted)
	assert.Zero(t, h.leads.Len())
}

func TestOfferTransferDeclineResumesTriggeringStep(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepEmail)
	for i := 0; i < 3; i++ {
		h.say(t, "no email")
	}
	require.Equal(t, StepOfferTransfer, h.store.state(testCall).Step)

	reply := h.say(t, "maybe")
	assert.Equal(t, StepOfferTransfer, reply.Step)
	assert.Equal(t, unclearPrompts[StepOfferTransfer], reply.Prompt)

	reply = h.say(t, "no thanks")
	assert.Equal(t, StepEmail, reply.Step)
	assert.False(t, reply.Transfer)
	assert.Contains(t, reply.Prompt, continuationPrompts[StepEmail])
	st := h.store.state(testCall)
	assert.Empty(t, st.TransferFrom)
	assert.NotContains(t, st.RetryCounts, string(slots.Email))

	reply = h.say(t, "still nothing")
	assert.Equal(t, StepEmail, reply.Step, "the counter restarts after a declined transfer")
}

func TestZipDontKnowSkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepZip)

	reply := h.say(t, "I don't know")
	assert.Equal(t, StepPart, reply.Step)
	st := h.store.state(testCall)
	assert.Equal(t, slots.ZipUnknown, st.Slots.Value(slots.Zip))
	assert.False(t, st.Slots.Flag(slots.ZipConfirmed))
}

func TestZipFailuresDefaultWithoutTransfer(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepZip)
	h.say(t, "somewhere near the market")
	h.say(t, "the big city")

	reply := h.say(t, "twelve")
	assert.Equal(t, StepPart, reply.Step)
	assert.Equal(t, slots.ZipUnknown, h.store.state(testCall).Slots.Value(slots.Zip))
	assert.Contains(t, h.audit.types(), audit.EventSlotDefaulted)
	assert.NotContains(t, h.audit.types(), audit.EventTransferOffered)
}

func TestZipConfirmDenyClearsZip(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepZipConfirm)

	reply := h.say(t, "no")
	assert.Equal(t, StepZip, reply.Step)
	assert.False(t, h.store.state(testCall).Slots.Filled(slots.Zip))
}

func TestMakeAndModelRepromptIndefinitely(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepMake)

	for i := 0; i < 6; i++ {
		reply := h.say(t, "")
		require.Equal(t, StepMake, reply.Step)
		require.Equal(t, missedPrompts[StepMake], reply.Prompt)
	}
	reply := h.say(t, "Toyota")
	assert.Equal(t, StepModel, reply.Step)

	reply = h.say(t, "no idea")
	assert.Equal(t, StepYear, reply.Step)
	assert.Equal(t, slots.Unknown, h.store.state(testCall).Slots.Value(slots.Model))
}

func TestYearNeverBlocksCompletion(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepYear)
	h.say(t, "it is quite old")
	h.say(t, "last decade")

	reply := h.say(t, "around ninety")
	assert.Equal(t, StepTrim, reply.Step)
	assert.Equal(t, slots.Unknown, h.store.state(testCall).Slots.Value(slots.Year))
}

func TestYearDontKnow(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepYear)

	reply := h.say(t, "not sure")
	assert.Equal(t, StepTrim, reply.Step)
	assert.Equal(t, slots.Unknown, h.store.state(testCall).Slots.Value(slots.Year))
}

func TestTrimSummaryReadsBackDetails(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepTrim)

	reply := h.say(t, "VX")
	assert.Equal(t, StepFinalConfirm, reply.Step)
	for _, want := range []string{"John Smith", "98765 43210", "john@example.com", "110001", "brake pads", "Honda Civic 2018", "trim VX"} {
		assert.Contains(t, reply.Prompt, want)
	}
}

// reachOfferTransfer misses the mobile number until the transfer offer.
func (h *harness) reachOfferTransfer(t *testing.T) {
	t.Helper()
	h.advanceTo(t, StepMobile)
	for _, utterance := range []string{"I am not sure", "I am not sure", "hmm"} {
		h.say(t, utterance)
	}
	require.Equal(t, StepOfferTransfer, h.store.state(testCall).Step)
}

func TestInterruptionsAreTransparent(t *testing.T) {
	steps := []Step{StepGreeting, StepName, StepMobile, StepMobileConfirm, StepEmail, StepZip, StepZipConfirm, StepPart, StepMake, StepModel, StepYear, StepTrim, StepFinalConfirm, StepOfferTransfer}
	for _, step := range steps {
		t.Run(string(step), func(t *testing.T) {
			h := newHarness(t)
			switch step {
			case StepGreeting:
				// a call whose first turn arrives before Start ran
				h.store.seed(NewConversationState(testCall))
			case StepOfferTransfer:
				h.reachOfferTransfer(t)
			default:
				h.advanceTo(t, step)
			}
			before := h.store.state(testCall)

			reply := h.say(t, "how much will it cost?")
			assert.Equal(t, step, reply.Step)
			assert.True(t, strings.HasPrefix(reply.Prompt, priceInfo))
			assert.True(t, strings.HasSuffix(reply.Prompt, continuation(step)))

			after := h.store.state(testCall)
			assert.Equal(t, step, after.Step)
			assert.Equal(t, before.Slots, after.Slots)
			assert.Equal(t, before.RetryCounts, after.RetryCounts)
			assert.Equal(t, before.TransferFrom, after.TransferFrom)

			reply = h.say(t, "what about the warranty")
			assert.Equal(t, step, reply.Step)
			assert.True(t, strings.HasPrefix(reply.Prompt, warrantyInfo))
		})
	}
}

func TestFinalDenyRestartsAtNameKeepingSlots(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepFinalConfirm)
	before := h.store.state(testCall).Slots

	reply := h.say(t, "no, that's not right")
	assert.Equal(t, StepName, reply.Step)
	assert.Equal(t, promptRestart, reply.Prompt)
	assert.Equal(t, before, h.store.state(testCall).Slots)
	assert.Contains(t, h.audit.types(), audit.EventDetailsDenied)

	h.say(t, "Jon Smyth")
	assert.Equal(t, "Jon Smyth", h.store.state(testCall).Slots.Value(slots.Name))
}

func TestFinalConfirmUnclearReasks(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepFinalConfirm)

	reply := h.say(t, "hmm let me think")
	assert.Equal(t, StepFinalConfirm, reply.Step)
	assert.Equal(t, unclearPrompts[StepFinalConfirm], reply.Prompt)
	assert.Zero(t, h.leads.Len())
}

func TestFinalConfirmRejectsInvalidPhone(t *testing.T) {
	h := newHarness(t)
	st := NewConversationState(testCall)
	st.Step = StepFinalConfirm
	st.Slots.Set(slots.Name, "John Smith")
	st.Slots.Set(slots.Phone, "12345")
	h.store.seed(st)

	reply := h.say(t, "yes")
	assert.Equal(t, StepMobile, reply.Step)
	assert.Equal(t, promptInvalidPhone, reply.Prompt)
	assert.False(t, h.store.state(testCall).Slots.Filled(slots.Phone))
	assert.Zero(t, h.leads.Len())
	assert.Contains(t, h.audit.types(), audit.EventLeadRejected)
}

func TestLeadSaveFailureApologizesAndEnds(t *testing.T) {
	writer := &failingLeadWriter{}
	store := newFakeStore()
	recorder := &recordingAudit{}
	m := NewMachine(store, nil, writer, logging.New("error"), WithAudit(recorder))
	ctx := context.Background()

	_, err := m.Start(ctx, testCall, "")
	require.NoError(t, err)
	var reply Reply
	for _, utterance := range []string{"John Smith", "9876543210", "yes", "john@example.com", "110001", "yes", "brake pads", "Honda", "Civic", "2018", "I don't know", "yes"} {
		reply, err = m.Handle(ctx, Turn{CallID: testCall, Utterance: utterance})
		require.NoError(t, err)
	}

	assert.Equal(t, StepEnd, reply.Step)
	assert.False(t, reply.Continue)
	assert.Equal(t, promptSaveFailed, reply.Prompt)
	assert.Equal(t, 1, writer.calls)
	st := store.state(testCall)
	assert.False(t, st.LeadSaved)
	assert.Contains(t, recorder.types(), audit.EventLeadSaveFailed)
}

func TestConfirmationUsesClassifierForTentativeResults(t *testing.T) {
	classifier := &stubClassifier{intent: nlu.IntentDeny}
	extractor := scriptedExtractor{outcomes: map[string]nlu.Outcome{
		"yes I guess": {Kind: nlu.OutcomeParsed, Result: nlu.ExtractionResult{Intent: nlu.IntentConfirm, Confidence: 0.4}},
		"sure":        {Kind: nlu.OutcomeParsed, Result: nlu.ExtractionResult{Intent: nlu.IntentConfirm, Confidence: 0.95}},
	}}
	store := newFakeStore()
	m := NewMachine(store, extractor, leads.NewInMemoryRepository(), logging.New("error"), WithClassifier(classifier))
	ctx := context.Background()

	st := NewConversationState(testCall)
	st.Step = StepMobileConfirm
	st.Slots.Set(slots.Phone, "9876543210")
	store.seed(st)

	reply, err := m.Handle(ctx, Turn{CallID: testCall, Utterance: "yes I guess"})
	require.NoError(t, err)
	assert.Equal(t, StepMobile, reply.Step, "a tentative confirm defers to the classifier")
	assert.Equal(t, 1, classifier.calls)

	_, err = m.Handle(ctx, Turn{CallID: testCall, Utterance: "9876543210"})
	require.NoError(t, err)
	reply, err = m.Handle(ctx, Turn{CallID: testCall, Utterance: "sure"})
	require.NoError(t, err)
	assert.Equal(t, StepEmail, reply.Step)
	assert.Equal(t, 1, classifier.calls, "a confident confirm is trusted")
}

func TestStoreErrorsAreReturned(t *testing.T) {
	h := newHarness(t)
	h.start(t, "")

	h.store.putErr = ErrConflict
	_, err := h.machine.Handle(context.Background(), Turn{CallID: testCall, Utterance: "John Smith"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	h.store.putErr = nil
	h.store.getErr = errors.New("connection refused")
	_, err = h.machine.Handle(context.Background(), Turn{CallID: testCall, Utterance: "John Smith"})
	assert.Error(t, err)
}

func TestStaleVersionConflicts(t *testing.T) {
	h := newHarness(t)
	h.start(t, "")
	stale := h.store.state(testCall)

	h.say(t, "John Smith")

	stale.Step = StepEmail
	assert.ErrorIs(t, h.store.Put(context.Background(), stale), ErrConflict)
	assert.Equal(t, StepMobile, h.store.state(testCall).Step)
}

func TestHistoryIsBounded(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, StepMake)
	for i := 0; i < maxHistory; i++ {
		h.say(t, "")
		h.say(t, "what is the price")
	}
	assert.Len(t, h.store.state(testCall).History, maxHistory)
}

func TestNewMachineRequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { NewMachine(nil, nil, leads.NewInMemoryRepository(), nil) })
	assert.Panics(t, func() { NewMachine(newFakeStore(), nil, nil, nil) })
	assert.NotPanics(t, func() { NewMachine(newFakeStore(), nil, leads.NewInMemoryRepository(), nil) })
}
