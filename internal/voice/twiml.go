package voice

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
)

const (
	repeatPrompt  = "Sorry, I didn't catch that. Could you please repeat?"
	troublePrompt = "Sorry, we are having technical difficulties. Please call again later. Goodbye."
)

// Renderer turns dialogue replies into TwiML.
type Renderer struct {
	voice          string
	actionURL      string
	transferNumber string
}

func NewRenderer(voice, actionURL, transferNumber string) *Renderer {
	if voice == "" {
		voice = "Polly.Joanna"
	}
	return &Renderer{voice: voice, actionURL: actionURL, transferNumber: transferNumber}
}

// Render speaks reply. audioURL, when set, is played instead of the built-in
// voice. A continuing reply gathers speech and falls through to a redirect so
// silence still reaches the dialogue as an empty turn.
func (r *Renderer) Render(reply dialogue.Reply, audioURL string) (string, error) {
	speak := r.speech(reply.Prompt, audioURL)

	var elements []twiml.Element
	switch {
	case reply.Continue:
		elements = []twiml.Element{
			r.gather(speak),
			&twiml.VoiceRedirect{Url: r.actionURL, Method: "POST"},
		}
	case reply.Transfer && r.transferNumber != "":
		elements = []twiml.Element{speak, &twiml.VoiceDial{Number: r.transferNumber}}
	default:
		elements = []twiml.Element{speak, &twiml.VoiceHangup{}}
	}

	out, err := twiml.Voice(elements)
	if err != nil {
		return "", fmt.Errorf("voice: render twiml: %w", err)
	}
	return out, nil
}

// Repeat asks the caller to say the last answer again without touching state.
func (r *Renderer) Repeat() (string, error) {
	return r.Render(dialogue.Reply{Prompt: repeatPrompt, Continue: true}, "")
}

// Trouble ends the call with an apology.
func (r *Renderer) Trouble() (string, error) {
	return r.Render(dialogue.Reply{Prompt: troublePrompt}, "")
}

func (r *Renderer) gather(inner twiml.Element) twiml.Element {
	return &twiml.VoiceGather{
		Input:         "speech",
		Action:        r.actionURL,
		Method:        "POST",
		SpeechTimeout: "auto",
		Language:      "en-IN",
		InnerElements: []twiml.Element{inner},
	}
}

func (r *Renderer) speech(prompt, audioURL string) twiml.Element {
	if audioURL != "" {
		return &twiml.VoicePlay{Url: audioURL}
	}
	return &twiml.VoiceSay{Message: prompt, Voice: r.voice}
}
