package dialogue

import "context"

// Event is the interpretation of one caller turn at the current step.
type Event string

const (
	EventAdvance      Event = "advance"
	EventCaptured     Event = "captured"
	EventDontKnow     Event = "dont_know"
	EventMissed       Event = "missed"
	EventExhausted    Event = "exhausted"
	EventConfirm      Event = "confirm"
	EventDeny         Event = "deny"
	EventUnclear      Event = "unclear"
	EventInvalidPhone Event = "invalid_phone"
)

// stepResume sends the conversation back to the step that offered a transfer.
const stepResume Step = "resume"

type turn struct {
	state     *ConversationState
	from      Step
	utterance string
	value     string
	transfer  bool
}

type effect func(m *Machine, ctx context.Context, t *turn) string

type transition struct {
	next   Step
	effect effect
}

// transitions is the complete intake script. A step with no entry for an
// event re-asks its question.
var transitions = map[Step]map[Event]transition{
	StepGreeting: {
		EventAdvance: {StepName, (*Machine).greet},
	},
	StepName: {
		EventCaptured: {StepMobile, (*Machine).captureSlot},
		EventMissed:   {StepName, (*Machine).reprompt},
	},
	StepMobile: {
		EventCaptured:  {StepMobileConfirm, (*Machine).capturePhone},
		EventMissed:    {StepMobile, (*Machine).reprompt},
		EventExhausted: {StepOfferTransfer, (*Machine).offerTransfer},
	},
	StepMobileConfirm: {
		EventConfirm: {StepEmail, (*Machine).confirmPhone},
		EventDeny:    {StepMobile, (*Machine).denyPhone},
		EventUnclear: {StepMobileConfirm, (*Machine).askAgain},
	},
	StepEmail: {
		EventCaptured:  {StepZip, (*Machine).captureSlot},
		EventMissed:    {StepEmail, (*Machine).reprompt},
		EventExhausted: {StepOfferTransfer, (*Machine).offerTransfer},
	},
	StepZip: {
		EventCaptured:  {StepZipConfirm, (*Machine).captureZip},
		EventDontKnow:  {StepPart, (*Machine).zipUnknown},
		EventMissed:    {StepZip, (*Machine).reprompt},
		EventExhausted: {StepPart, (*Machine).defaultSlot},
	},
	StepZipConfirm: {
		EventConfirm: {StepPart, (*Machine).confirmZip},
		EventDeny:    {StepZip, (*Machine).denyZip},
		EventUnclear: {StepZipConfirm, (*Machine).askAgain},
	},
	StepPart: {
		EventCaptured:  {StepMake, (*Machine).captureSlot},
		EventMissed:    {StepPart, (*Machine).reprompt},
		EventExhausted: {StepOfferTransfer, (*Machine).offerTransfer},
	},
	StepMake: {
		EventCaptured: {StepModel, (*Machine).captureSlot},
		EventDontKnow: {StepModel, (*Machine).unknownSlot},
		EventMissed:   {StepMake, (*Machine).reprompt},
	},
	StepModel: {
		EventCaptured: {StepYear, (*Machine).captureSlot},
		EventDontKnow: {StepYear, (*Machine).unknownSlot},
		EventMissed:   {StepModel, (*Machine).reprompt},
	},
	StepYear: {
		EventCaptured:  {StepTrim, (*Machine).captureSlot},
		EventDontKnow:  {StepTrim, (*Machine).unknownSlot},
		EventMissed:    {StepYear, (*Machine).reprompt},
		EventExhausted: {StepTrim, (*Machine).defaultSlot},
	},
	StepTrim: {
		EventCaptured: {StepFinalConfirm, (*Machine).captureTrim},
		EventDontKnow: {StepFinalConfirm, (*Machine).captureTrim},
	},
	StepFinalConfirm: {
		EventConfirm:      {StepEnd, (*Machine).saveLead},
		EventInvalidPhone: {StepMobile, (*Machine).rejectPhone},
		EventDeny:         {StepName, (*Machine).restartDetails},
		EventUnclear:      {StepFinalConfirm, (*Machine).askAgain},
	},
	StepOfferTransfer: {
		EventConfirm: {StepEnd, (*Machine).acceptTransfer},
		EventDeny:    {stepResume, (*Machine).declineTransfer},
		EventUnclear: {StepOfferTransfer, (*Machine).askAgain},
	},
}

func lookup(step Step, ev Event) (transition, bool) {
	tr, ok := transitions[step][ev]
	return tr, ok
}
