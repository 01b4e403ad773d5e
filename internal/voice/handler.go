// Package voice adapts Twilio voice webhooks to the dialogue machine.
package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
	"github.com/wolfman30/autoparts-voice-agent/internal/redact"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("autoparts.internal.voice")

// Dialogue is the conversation engine behind the webhooks.
type Dialogue interface {
	Start(ctx context.Context, callID, callerPhone string) (dialogue.Reply, error)
	Handle(ctx context.Context, in dialogue.Turn) (dialogue.Reply, error)
}

// SessionEvicter drops the state of a finished call.
type SessionEvicter interface {
	Delete(ctx context.Context, callID string) error
}

// Config wires the handler.
type Config struct {
	Dialogue      Dialogue
	Sessions      SessionEvicter
	Renderer      *Renderer
	Audio         *PromptAudio
	AuthToken     string
	PublicBaseURL string
	CountryPrefix string
	Logger        *logging.Logger
}

// Handler serves /voice/incoming, /voice/speech and /voice/status.
type Handler struct {
	dialogue      Dialogue
	sessions      SessionEvicter
	renderer      *Renderer
	audio         *PromptAudio
	validator     *client.RequestValidator
	publicBaseURL string
	countryPrefix string
	logger        *logging.Logger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Dialogue == nil {
		panic("voice: dialogue cannot be nil")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = NewRenderer("", "/voice/speech", "")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	h := &Handler{
		dialogue:      cfg.Dialogue,
		sessions:      cfg.Sessions,
		renderer:      cfg.Renderer,
		audio:         cfg.Audio,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		countryPrefix: cfg.CountryPrefix,
		logger:        cfg.Logger,
	}
	if cfg.AuthToken != "" {
		v := client.NewRequestValidator(cfg.AuthToken)
		h.validator = &v
	}
	return h
}

// Incoming handles POST /voice/incoming when a call is answered.
func (h *Handler) Incoming(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "voice.incoming")
	defer span.End()

	form, ok := h.verify(w, r)
	if !ok {
		return
	}
	callID := form["CallSid"]
	if callID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("autoparts.call_id", callID))

	caller := NormalizeCaller(form["From"], h.countryPrefix)
	h.logger.Info("incoming call", "call_id", callID, "caller_hash", redact.HashPhone(caller))
	reply, err := h.dialogue.Start(ctx, callID, caller)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("failed to start call", "call_id", callID, "error", err)
		h.writeTwiML(w, h.renderer.Trouble)
		return
	}
	h.respond(ctx, w, callID, reply)
}

// Speech handles POST /voice/speech with the transcribed utterance.
func (h *Handler) Speech(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "voice.speech")
	defer span.End()

	form, ok := h.verify(w, r)
	if !ok {
		return
	}
	callID := form["CallSid"]
	if callID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("autoparts.call_id", callID))

	reply, err := h.dialogue.Handle(ctx, dialogue.Turn{
		CallID:      callID,
		Utterance:   form["SpeechResult"],
		CallerPhone: NormalizeCaller(form["From"], h.countryPrefix),
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, dialogue.ErrConflict) {
			h.logger.Warn("overlapping turn rejected", "call_id", callID)
		} else {
			h.logger.Error("failed to handle turn", "call_id", callID, "error", err)
		}
		h.writeTwiML(w, h.renderer.Repeat)
		return
	}
	h.logger.Debug("voice turn", "call_id", callID, "step", reply.Step, "utterance", redact.Scrub(form["SpeechResult"]))
	h.respond(ctx, w, callID, reply)
}

// Status handles POST /voice/status callbacks and evicts finished calls.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "voice.status")
	defer span.End()

	form, ok := h.verify(w, r)
	if !ok {
		return
	}
	callID := form["CallSid"]
	status := strings.ToLower(strings.TrimSpace(form["CallStatus"]))
	span.SetAttributes(
		attribute.String("autoparts.call_id", callID),
		attribute.String("autoparts.call_status", status),
	)
	if callID != "" && isFinalStatus(status) && h.sessions != nil {
		if err := h.sessions.Delete(ctx, callID); err != nil {
			span.RecordError(err)
			h.logger.Warn("failed to evict session", "call_id", callID, "error", err)
		} else {
			h.logger.Info("call finished", "call_id", callID, "status", status)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, callID string, reply dialogue.Reply) {
	audioURL := h.audio.URL(ctx, callID, reply.Prompt)
	h.writeTwiML(w, func() (string, error) { return h.renderer.Render(reply, audioURL) })
}

func (h *Handler) writeTwiML(w http.ResponseWriter, render func() (string, error)) {
	body, err := render()
	if err != nil {
		h.logger.Error("failed to render twiml", "error", err)
		http.Error(w, "failed to build TwiML", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// verify parses the form and checks X-Twilio-Signature when an auth token is
// configured. Only the first value of each field is kept.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse twilio form", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	form := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			form[key] = values[0]
		}
	}
	if h.validator == nil {
		return form, true
	}
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || !h.validator.Validate(h.webhookURL(r), form, signature) {
		h.logger.Warn("invalid twilio signature", "path", r.URL.Path)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return form, true
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

func isFinalStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}
