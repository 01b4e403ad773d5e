// Package dialogue runs the voice lead-intake conversation: one caller
// utterance in, one spoken reply out, with the conversation state persisted
// between turns.
package dialogue

import "github.com/wolfman30/autoparts-voice-agent/internal/slots"

// Step is a node of the intake script.
type Step string

const (
	StepGreeting      Step = "greeting"
	StepName          Step = "name"
	StepMobile        Step = "mobile"
	StepMobileConfirm Step = "mobile_confirm"
	StepEmail         Step = "email"
	StepZip           Step = "zip"
	StepZipConfirm    Step = "zip_confirm"
	StepPart          Step = "part"
	StepMake          Step = "make"
	StepModel         Step = "model"
	StepYear          Step = "year"
	StepTrim          Step = "trim"
	StepFinalConfirm  Step = "final_confirm"
	StepOfferTransfer Step = "offer_transfer"
	StepEnd           Step = "end"
)

// Steps lists every step in script order.
var Steps = []Step{
	StepGreeting, StepName, StepMobile, StepMobileConfirm, StepEmail, StepZip, StepZipConfirm,
	StepPart, StepMake, StepModel, StepYear, StepTrim, StepFinalConfirm, StepOfferTransfer, StepEnd,
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

// Terminal reports whether the conversation is over.
func (s Step) Terminal() bool {
	return s == StepEnd
}

// confirmation steps expect a yes/no answer.
func (s Step) confirmation() bool {
	switch s {
	case StepMobileConfirm, StepZipConfirm, StepFinalConfirm, StepOfferTransfer:
		return true
	}
	return false
}

var stepSlots = map[Step]slots.Key{
	StepName:   slots.Name,
	StepMobile: slots.Phone,
	StepEmail:  slots.Email,
	StepZip:    slots.Zip,
	StepPart:   slots.PartRequested,
	StepMake:   slots.Make,
	StepModel:  slots.Model,
	StepYear:   slots.Year,
	StepTrim:   slots.Trim,
}

// Slot returns the slot a capture step fills.
func (s Step) Slot() (slots.Key, bool) {
	key, ok := stepSlots[s]
	return key, ok
}

func (s Step) targets() []slots.Key {
	switch s {
	case StepMobileConfirm:
		return []slots.Key{slots.Phone}
	case StepZipConfirm:
		return []slots.Key{slots.Zip}
	}
	if key, ok := s.Slot(); ok {
		return []slots.Key{key}
	}
	return nil
}
