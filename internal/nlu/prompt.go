package nlu

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You are a strict NLU extractor for an auto parts sales phone line.
Output ONLY valid JSON with no extra text.
Return an object with this schema:
{
  "intent": one of ["confirm","deny","provide_slot","ask_price","ask_warranty","unclear"],
  "entities": {
    "phone": "10 digits or null",
    "email": "string or null",
    "zip": "5 or 6 digits or null",
    "make": "string or null",
    "model": "string or null",
    "year": "YYYY or null",
    "trim": "string or null"
  },
  "confidence": number between 0 and 1
}
Only fill an entity when the caller clearly said it. If unsure, return confidence below 0.7.`

const yesNoSystemPrompt = `You classify whether a phone caller answered yes or no.
Output ONLY valid JSON: {"answer": "yes" | "no" | "unclear"}.`

func buildExtractionPrompt(utterance string, c Context) string {
	targets := make([]string, 0, len(c.Targets))
	for _, key := range c.Targets {
		targets = append(targets, fmt.Sprintf("%q", string(key)))
	}

	var recent strings.Builder
	for _, turn := range c.Recent {
		fmt.Fprintf(&recent, "- %s: %s\n", turn.Speaker, turn.Text)
	}
	if recent.Len() == 0 {
		recent.WriteString("- none\n")
	}

	return fmt.Sprintf("user_utterance: %q\ncurrent_step: %q\ntarget_slots: [%s]\nrecent_turns:\n%s",
		utterance, c.Step, strings.Join(targets, ","), recent.String())
}
