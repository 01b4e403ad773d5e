package voice

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

type fakeDialogue struct {
	startCaller string
	turns       []dialogue.Turn
	reply       dialogue.Reply
	err         error
}

func (f *fakeDialogue) Start(_ context.Context, _ string, callerPhone string) (dialogue.Reply, error) {
	f.startCaller = callerPhone
	return f.reply, f.err
}

func (f *fakeDialogue) Handle(_ context.Context, in dialogue.Turn) (dialogue.Reply, error) {
	f.turns = append(f.turns, in)
	return f.reply, f.err
}

type fakeEvicter struct {
	deleted []string
}

func (f *fakeEvicter) Delete(_ context.Context, callID string) error {
	f.deleted = append(f.deleted, callID)
	return nil
}

func newTestHandler(d Dialogue, evicter SessionEvicter, token string) *Handler {
	return NewHandler(Config{
		Dialogue:      d,
		Sessions:      evicter,
		Renderer:      NewRenderer("Polly.Joanna", "https://voice.example.com/voice/speech", "+911140000000"),
		AuthToken:     token,
		PublicBaseURL: "https://voice.example.com",
		CountryPrefix: "+91",
		Logger:        logging.New("error"),
	})
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestIncomingStartsCall(t *testing.T) {
	d := &fakeDialogue{reply: dialogue.Reply{Prompt: "Welcome to Firstused Autoparts", Step: dialogue.StepName, Continue: true}}
	h := newTestHandler(d, nil, "")

	rec := httptest.NewRecorder()
	h.Incoming(rec, postForm("/voice/incoming", url.Values{"CallSid": {"CA1"}, "From": {"+919876543210"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9876543210", d.startCaller)
	body := rec.Body.String()
	assert.Contains(t, body, "<Gather")
	assert.Contains(t, body, `input="speech"`)
	assert.Contains(t, body, "Welcome to Firstused Autoparts")
	assert.Contains(t, body, "Polly.Joanna")
	assert.Contains(t, body, "<Redirect")
}

func TestIncomingRequiresCallSid(t *testing.T) {
	h := newTestHandler(&fakeDialogue{}, nil, "")
	rec := httptest.NewRecorder()
	h.Incoming(rec, postForm("/voice/incoming", url.Values{"From": {"+919876543210"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncomingStartFailureHangsUp(t *testing.T) {
	h := newTestHandler(&fakeDialogue{err: errors.New("redis down")}, nil, "")
	rec := httptest.NewRecorder()
	h.Incoming(rec, postForm("/voice/incoming", url.Values{"CallSid": {"CA1"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "technical difficulties")
	assert.Contains(t, rec.Body.String(), "<Hangup")
}

func TestSpeechForwardsUtterance(t *testing.T) {
	d := &fakeDialogue{reply: dialogue.Reply{Prompt: "Thank you, John Smith.", Step: dialogue.StepMobile, Continue: true}}
	h := newTestHandler(d, nil, "")

	rec := httptest.NewRecorder()
	h.Speech(rec, postForm("/voice/speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"John Smith"}, "From": {"+91 98765 43210"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.turns, 1)
	assert.Equal(t, dialogue.Turn{CallID: "CA1", Utterance: "John Smith", CallerPhone: "9876543210"}, d.turns[0])
	assert.Contains(t, rec.Body.String(), "Thank you, John Smith.")
}

func TestSpeechStoreErrorAsksToRepeat(t *testing.T) {
	for _, err := range []error{fmt.Errorf("dialogue: store session: %w", dialogue.ErrConflict), errors.New("boom")} {
		h := newTestHandler(&fakeDialogue{err: err}, nil, "")
		rec := httptest.NewRecorder()
		h.Speech(rec, postForm("/voice/speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"yes"}}))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Could you please repeat?")
		assert.Contains(t, rec.Body.String(), "<Gather")
	}
}

func TestSpeechEndAndTransfer(t *testing.T) {
	d := &fakeDialogue{reply: dialogue.Reply{Prompt: "Thank you! Your details have been saved.", Step: dialogue.StepEnd}}
	h := newTestHandler(d, nil, "")
	rec := httptest.NewRecorder()
	h.Speech(rec, postForm("/voice/speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"yes"}}))
	assert.Contains(t, rec.Body.String(), "<Hangup")
	assert.NotContains(t, rec.Body.String(), "<Gather")

	d.reply = dialogue.Reply{Prompt: "Connecting you to our customer service team now.", Step: dialogue.StepEnd, Transfer: true}
	rec = httptest.NewRecorder()
	h.Speech(rec, postForm("/voice/speech", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"yes"}}))
	assert.Contains(t, rec.Body.String(), "<Dial")
	assert.Contains(t, rec.Body.String(), "+911140000000")
	assert.NotContains(t, rec.Body.String(), "<Hangup")
}

func TestStatusEvictsFinishedCalls(t *testing.T) {
	evicter := &fakeEvicter{}
	h := newTestHandler(&fakeDialogue{}, evicter, "")

	for _, status := range []string{"in-progress", "completed", "no-answer"} {
		rec := httptest.NewRecorder()
		h.Status(rec, postForm("/voice/status", url.Values{"CallSid": {"CA-" + status}, "CallStatus": {status}}))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, []string{"CA-completed", "CA-no-answer"}, evicter.deleted)
}

func TestSignatureValidation(t *testing.T) {
	const token = "secret-token"
	d := &fakeDialogue{reply: dialogue.Reply{Prompt: "Hello", Continue: true}}
	h := newTestHandler(d, nil, token)
	form := url.Values{"CallSid": {"CA1"}, "From": {"+919876543210"}}

	rec := httptest.NewRecorder()
	h.Incoming(rec, postForm("/voice/incoming", form))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing signature")

	req := postForm("/voice/incoming", form)
	req.Header.Set("X-Twilio-Signature", "bogus")
	rec = httptest.NewRecorder()
	h.Incoming(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = postForm("/voice/incoming", form)
	req.Header.Set("X-Twilio-Signature", sign(token, "https://voice.example.com/voice/incoming", form))
	rec = httptest.NewRecorder()
	h.Incoming(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildAbsoluteURLUsesForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/voice/speech?x=1", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "voice.example.com")
	assert.Equal(t, "https://voice.example.com/voice/speech?x=1", buildAbsoluteURL(req))
}
