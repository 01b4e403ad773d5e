package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/autoparts-voice-agent/internal/audit"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/internal/observability/metrics"
	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("autoparts.internal.dialogue")

const recentTurns = 6

// Extractor interprets a caller utterance.
type Extractor interface {
	Extract(ctx context.Context, utterance string, c nlu.Context) nlu.Outcome
}

// YesNoClassifier resolves confirmation answers the extractor left open.
type YesNoClassifier interface {
	ClassifyYesNo(ctx context.Context, utterance string) nlu.Intent
}

// LeadWriter persists finalized leads.
type LeadWriter interface {
	Create(ctx context.Context, lead *leads.LeadRecord) (*leads.LeadRecord, error)
}

// AuditLogger records notable call events.
type AuditLogger interface {
	LogCallEvent(ctx context.Context, event audit.CallEvent) error
}

// Turn is one caller utterance delivered by the telephony layer.
type Turn struct {
	CallID      string
	Utterance   string
	CallerPhone string
}

// Reply is what the agent says back.
type Reply struct {
	Prompt   string
	Step     Step
	Continue bool
	Transfer bool
	LeadID   string
}

// Machine advances one conversation per call. Turns for different calls may
// run concurrently; the store's version check rejects overlapping turns on
// the same call.
type Machine struct {
	store      Store
	extractor  Extractor
	classifier YesNoClassifier
	leads      LeadWriter
	audit      AuditLogger
	metrics    *metrics.DialogueMetrics
	logger     *logging.Logger
	now        func() time.Time
}

type Option func(*Machine)

func WithClassifier(c YesNoClassifier) Option {
	return func(m *Machine) { m.classifier = c }
}

func WithAudit(a AuditLogger) Option {
	return func(m *Machine) { m.audit = a }
}

func WithMetrics(dm *metrics.DialogueMetrics) Option {
	return func(m *Machine) { m.metrics = dm }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMachine(store Store, extractor Extractor, leadWriter LeadWriter, logger *logging.Logger, opts ...Option) *Machine {
	if store == nil {
		panic("dialogue: session store required")
	}
	if leadWriter == nil {
		panic("dialogue: lead writer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if extractor == nil {
		extractor = nlu.NewExtractor(nil, "", logger)
	}
	m := &Machine{
		store:     store,
		extractor: extractor,
		leads:     leadWriter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a call: the session is reset to the greeting and the welcome
// prompt is returned, leaving the conversation at the name step.
func (m *Machine) Start(ctx context.Context, callID, callerPhone string) (Reply, error) {
	ctx, span := tracer.Start(ctx, "dialogue.start")
	defer span.End()
	started := time.Now()
	defer func() { m.metrics.ObserveLatency("start", time.Since(started).Seconds()) }()

	existing, err := m.store.Get(ctx, callID)
	if err != nil {
		span.RecordError(err)
		return Reply{}, fmt.Errorf("dialogue: load session: %w", err)
	}

	st := NewConversationState(callID)
	st.Version = existing.Version
	st.CallerPhone = slots.NormalizePhone(callerPhone)
	st.StartedAt = m.now()

	reply := m.apply(ctx, st, EventAdvance, &turn{state: st, from: st.Step})
	if err := m.commit(ctx, st, reply); err != nil {
		span.RecordError(err)
		return Reply{}, err
	}
	m.logger.Info("call started", "call_id", callID, "caller_id_present", st.CallerPhone != "")
	return reply, nil
}

// Handle processes one caller utterance.
func (m *Machine) Handle(ctx context.Context, in Turn) (Reply, error) {
	ctx, span := tracer.Start(ctx, "dialogue.handle")
	defer span.End()
	started := time.Now()
	defer func() { m.metrics.ObserveLatency("turn", time.Since(started).Seconds()) }()

	st, err := m.store.Get(ctx, in.CallID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load session")
		return Reply{}, fmt.Errorf("dialogue: load session: %w", err)
	}
	st.normalize()
	if st.CallID == "" {
		st.CallID = in.CallID
	}
	if st.StartedAt.IsZero() {
		st.StartedAt = m.now()
	}
	if st.CallerPhone == "" {
		st.CallerPhone = slots.NormalizePhone(in.CallerPhone)
	}
	span.SetAttributes(
		attribute.String("autoparts.call_id", in.CallID),
		attribute.String("autoparts.step", string(st.Step)),
	)

	if st.Step.Terminal() {
		return Reply{Prompt: promptGoodbye, Step: st.Step, Continue: false, LeadID: st.LeadID}, nil
	}

	utterance := strings.TrimSpace(in.Utterance)
	m.metrics.ObserveTurn(string(st.Step))
	st.Turns++
	st.record(nlu.SpeakerCaller, utterance)

	outcome := m.extractor.Extract(ctx, utterance, nlu.Context{
		Step:    string(st.Step),
		Targets: st.Step.targets(),
		Recent:  st.recent(recentTurns),
	})
	m.metrics.ObserveExtraction(string(outcome.Kind))

	var reply Reply
	if intent := outcome.Result.Intent; intent.Interruption() {
		m.metrics.ObserveInterruption(string(intent))
		reply = Reply{Prompt: interruption(intent, st.Step), Step: st.Step, Continue: true}
	} else {
		ev, value := m.interpret(ctx, st, utterance, outcome)
		reply = m.apply(ctx, st, ev, &turn{state: st, from: st.Step, utterance: utterance, value: value})
	}

	if err := m.commit(ctx, st, reply); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store session")
		return Reply{}, err
	}
	span.SetAttributes(attribute.String("autoparts.next_step", string(reply.Step)))
	return reply, nil
}

func (m *Machine) commit(ctx context.Context, st *ConversationState, reply Reply) error {
	st.record(nlu.SpeakerAgent, reply.Prompt)
	st.UpdatedAt = m.now()
	if err := m.store.Put(ctx, st); err != nil {
		if errors.Is(err, ErrConflict) {
			m.logger.Warn("session changed during turn", "call_id", st.CallID)
		}
		return fmt.Errorf("dialogue: store session: %w", err)
	}
	return nil
}

// interpret maps the turn to an event of the current step. It applies retry
// ceilings: a miss that reaches the slot's ceiling becomes EventExhausted.
func (m *Machine) interpret(ctx context.Context, st *ConversationState, utterance string, out nlu.Outcome) (Event, string) {
	ev, value := m.classify(ctx, st, utterance, out)
	if ev != EventMissed {
		return ev, value
	}
	key, ok := st.Step.Slot()
	if !ok {
		return ev, value
	}
	if def, ok := slots.Lookup(key); ok && def.Exhausts(st.retry(key)) {
		m.metrics.ObserveExhausted(string(key))
		return EventExhausted, ""
	}
	return ev, value
}

func (m *Machine) classify(ctx context.Context, st *ConversationState, utterance string, out nlu.Outcome) (Event, string) {
	entities := out.Result.Entities
	switch st.Step {
	case StepGreeting:
		return EventAdvance, ""
	case StepName, StepPart:
		if utterance == "" {
			return EventMissed, ""
		}
		return EventCaptured, utterance
	case StepMake, StepModel:
		switch {
		case utterance == "":
			return EventMissed, ""
		case slots.DontKnow(utterance):
			return EventDontKnow, ""
		}
		return EventCaptured, utterance
	case StepMobile:
		if phone := entities.Value(slots.Phone); slots.ValidPhone(phone) {
			return EventCaptured, phone
		}
		if slots.ValidPhone(st.CallerPhone) && !st.CallerPhoneDeclined {
			return EventCaptured, st.CallerPhone
		}
		return EventMissed, ""
	case StepEmail:
		if email := entities.Value(slots.Email); slots.ValidEmail(email) {
			return EventCaptured, email
		}
		return EventMissed, ""
	case StepZip:
		if slots.DontKnow(utterance) {
			return EventDontKnow, ""
		}
		if zip := entities.Value(slots.Zip); slots.ValidZip(zip) {
			return EventCaptured, zip
		}
		return EventMissed, ""
	case StepYear:
		if year := entities.Value(slots.Year); year != "" {
			return EventCaptured, year
		}
		if slots.DontKnow(utterance) {
			return EventDontKnow, ""
		}
		return EventMissed, ""
	case StepTrim:
		if utterance == "" || slots.DontKnow(utterance) {
			return EventDontKnow, ""
		}
		return EventCaptured, utterance
	case StepMobileConfirm, StepZipConfirm, StepFinalConfirm, StepOfferTransfer:
		switch m.yesNo(ctx, utterance, out) {
		case nlu.IntentConfirm:
			if st.Step == StepFinalConfirm && !slots.ValidPhone(st.Slots.Value(slots.Phone)) {
				return EventInvalidPhone, ""
			}
			return EventConfirm, ""
		case nlu.IntentDeny:
			return EventDeny, ""
		default:
			return EventUnclear, ""
		}
	}
	return EventMissed, ""
}

// yesNo trusts a confident extractor verdict and otherwise asks the classifier.
func (m *Machine) yesNo(ctx context.Context, utterance string, out nlu.Outcome) nlu.Intent {
	intent := out.Result.Intent
	decisive := intent == nlu.IntentConfirm || intent == nlu.IntentDeny
	if decisive && !(out.Kind == nlu.OutcomeParsed && out.Result.Tentative()) {
		return intent
	}
	if m.classifier != nil {
		return m.classifier.ClassifyYesNo(ctx, utterance)
	}
	if local, ok := nlu.LocalYesNo(utterance); ok {
		return local
	}
	return nlu.IntentUnclear
}

func (m *Machine) apply(ctx context.Context, st *ConversationState, ev Event, t *turn) Reply {
	from := st.Step
	tr, ok := lookup(from, ev)
	if !ok {
		m.logger.Error("no transition for event", "call_id", st.CallID, "step", from, "event", ev)
		return Reply{Prompt: continuation(from), Step: from, Continue: true}
	}

	prompt := tr.effect(m, ctx, t)
	next := tr.next
	if next == stepResume {
		next = st.TransferFrom
		if !next.Valid() || next.Terminal() {
			next = StepMobile
		}
		st.TransferFrom = ""
	}
	if key, ok := from.Slot(); ok && (ev == EventCaptured || ev == EventDontKnow || ev == EventExhausted) {
		st.resetRetry(key)
	}
	st.Step = next

	m.metrics.ObserveTransition(string(from), string(next))
	m.logger.Debug("dialogue transition", "call_id", st.CallID, "from", from, "to", next, "event", ev)

	return Reply{
		Prompt:   prompt,
		Step:     next,
		Continue: !next.Terminal(),
		Transfer: t.transfer,
		LeadID:   st.LeadID,
	}
}

// Effects. Each mutates the state for its transition and returns the prompt.

func (m *Machine) greet(context.Context, *turn) string {
	return promptWelcome
}

func (m *Machine) reprompt(_ context.Context, t *turn) string {
	return missed(t.from)
}

func (m *Machine) askAgain(_ context.Context, t *turn) string {
	return unclearPrompts[t.from]
}

func (m *Machine) captureSlot(_ context.Context, t *turn) string {
	key, _ := t.from.Slot()
	t.state.Slots.Set(key, t.value)
	return captured(t.from, t.state.Slots.Value(key))
}

func (m *Machine) unknownSlot(_ context.Context, t *turn) string {
	key, _ := t.from.Slot()
	t.state.Slots.Set(key, slots.Unknown)
	return "No problem. " + continuation(nextCaptureStep(t.from))
}

func (m *Machine) defaultSlot(ctx context.Context, t *turn) string {
	key, _ := t.from.Slot()
	def, _ := slots.Lookup(key)
	t.state.Slots.Set(key, def.Sentinel)
	m.record(ctx, t.state, audit.EventSlotDefaulted, map[string]string{"slot": string(key), "value": def.Sentinel})
	return exhaustedPrompts[t.from]
}

func (m *Machine) capturePhone(_ context.Context, t *turn) string {
	t.state.Slots.Set(slots.Phone, t.value)
	t.state.Slots.SetFlag(slots.PhoneConfirmed, false)
	return readBackPhone(t.value)
}

func (m *Machine) confirmPhone(_ context.Context, t *turn) string {
	t.state.Slots.SetFlag(slots.PhoneConfirmed, true)
	return "Perfect. May I have your email address?"
}

func (m *Machine) denyPhone(_ context.Context, t *turn) string {
	st := t.state
	if phone := st.Slots.Value(slots.Phone); phone != "" && phone == st.CallerPhone {
		st.CallerPhoneDeclined = true
	}
	st.Slots.Clear(slots.Phone)
	st.Slots.SetFlag(slots.PhoneConfirmed, false)
	return "Sorry about that. Please tell me your correct 10-digit mobile number."
}

func (m *Machine) captureZip(_ context.Context, t *turn) string {
	t.state.Slots.Set(slots.Zip, t.value)
	t.state.Slots.SetFlag(slots.ZipConfirmed, false)
	return readBackZip(t.value)
}

func (m *Machine) zipUnknown(_ context.Context, t *turn) string {
	t.state.Slots.Set(slots.Zip, slots.ZipUnknown)
	return "No problem at all. Our representative will take care of it. What part are you looking for?"
}

func (m *Machine) confirmZip(_ context.Context, t *turn) string {
	t.state.Slots.SetFlag(slots.ZipConfirmed, true)
	return "Great. What part are you looking for?"
}

func (m *Machine) denyZip(_ context.Context, t *turn) string {
	t.state.Slots.Clear(slots.Zip)
	t.state.Slots.SetFlag(slots.ZipConfirmed, false)
	return "Sorry, please tell me your ZIP code again."
}

func (m *Machine) captureTrim(_ context.Context, t *turn) string {
	value := t.value
	if value == "" {
		value = slots.Unknown
	}
	t.state.Slots.Set(slots.Trim, value)
	return summary(t.state.Slots)
}

func (m *Machine) offerTransfer(ctx context.Context, t *turn) string {
	t.state.TransferFrom = t.from
	m.record(ctx, t.state, audit.EventTransferOffered, nil)
	return exhaustedPrompts[t.from]
}

func (m *Machine) acceptTransfer(ctx context.Context, t *turn) string {
	t.transfer = true
	m.record(ctx, t.state, audit.EventTransferAccepted, map[string]string{"from_step": string(t.state.TransferFrom)})
	return promptTransferring
}

func (m *Machine) declineTransfer(ctx context.Context, t *turn) string {
	resume := t.state.TransferFrom
	if !resume.Valid() || resume.Terminal() {
		resume = StepMobile
	}
	if key, ok := resume.Slot(); ok {
		t.state.resetRetry(key)
	}
	m.record(ctx, t.state, audit.EventTransferDeclined, map[string]string{"resume_step": string(resume)})
	return "Okay, let's continue. " + continuation(resume)
}

func (m *Machine) rejectPhone(ctx context.Context, t *turn) string {
	t.state.Slots.Clear(slots.Phone)
	t.state.Slots.SetFlag(slots.PhoneConfirmed, false)
	m.metrics.ObserveLead("rejected")
	m.record(ctx, t.state, audit.EventLeadRejected, map[string]string{"reason": "invalid phone"})
	return promptInvalidPhone
}

func (m *Machine) restartDetails(ctx context.Context, t *turn) string {
	m.record(ctx, t.state, audit.EventDetailsDenied, nil)
	return promptRestart
}

// saveLead finalizes and persists the lead once per call.
func (m *Machine) saveLead(ctx context.Context, t *turn) string {
	st := t.state
	if st.LeadSaved {
		return promptLeadSaved
	}

	lead, err := leads.Finalize(st.Slots, leads.Capture{
		CallID:      st.CallID,
		CallerPhone: st.CallerPhone,
		Turns:       st.Turns,
		Now:         m.now(),
	})
	if err != nil {
		m.logger.Warn("lead failed validation", "call_id", st.CallID, "error", err)
		m.metrics.ObserveLead("rejected")
		m.record(ctx, st, audit.EventLeadRejected, map[string]string{"reason": err.Error()})
		return promptSaveFailed
	}

	stored, err := m.leads.Create(ctx, lead)
	if err != nil {
		m.logger.Error("lead persistence failed", "call_id", st.CallID, "error", err)
		m.metrics.ObserveLead("failed")
		m.record(ctx, st, audit.EventLeadSaveFailed, map[string]string{"error": err.Error()})
		return promptSaveFailed
	}

	st.LeadSaved = true
	st.LeadID = stored.ID
	m.metrics.ObserveLead("saved")
	m.record(ctx, st, audit.EventLeadSaved, map[string]string{"status": stored.Status})
	m.logger.Info("lead saved", "call_id", st.CallID, "lead_id", stored.ID)
	return promptLeadSaved
}

func (m *Machine) record(ctx context.Context, st *ConversationState, eventType audit.EventType, details map[string]string) {
	if m.audit == nil {
		return
	}
	event := audit.CallEvent{
		EventType:   eventType,
		CallID:      st.CallID,
		Step:        string(st.Step),
		LeadID:      st.LeadID,
		FilledSlots: st.Slots.FilledKeys(),
		CreatedAt:   m.now(),
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			event.Details = raw
		}
	}
	if err := m.audit.LogCallEvent(ctx, event); err != nil {
		m.logger.Warn("audit event failed", "call_id", st.CallID, "event", eventType, "error", err)
	}
}

func nextCaptureStep(step Step) Step {
	switch step {
	case StepMake:
		return StepModel
	case StepModel:
		return StepYear
	case StepYear:
		return StepTrim
	}
	return step
}
