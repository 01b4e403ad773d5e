package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

func newTestForwarder(baseURL string) *forwarder {
	return &forwarder{
		upstreamBaseURL: baseURL,
		timeout:         time.Second,
		client:          &http.Client{Timeout: time.Second},
		logger:          logging.New("error"),
	}
}

func apiEvent(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

func TestHandleRejections(t *testing.T) {
	fwd := newTestForwarder("http://example.invalid")
	invalid := apiEvent(http.MethodPost, "/voice/speech")
	invalid.Body = "not-base64"
	invalid.IsBase64Encoded = true

	tests := []struct {
		name string
		evt  events.APIGatewayV2HTTPRequest
		want int
	}{
		{"health", apiEvent(http.MethodGet, "/health"), http.StatusOK},
		{"unknown path", apiEvent(http.MethodPost, "/admin/leads"), http.StatusNotFound},
		{"non post", apiEvent(http.MethodGet, "/voice/incoming"), http.StatusMethodNotAllowed},
		{"bad body", invalid, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := fwd.handle(context.Background(), tt.evt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHandleForwardsVoiceWebhook(t *testing.T) {
	var got *http.Request
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte("<Response></Response>"))
	}))
	defer upstream.Close()

	evt := apiEvent(http.MethodPost, "/voice/speech")
	evt.RawQueryString = "attempt=1"
	evt.Body = base64.StdEncoding.EncodeToString([]byte("CallSid=CA1&SpeechResult=John"))
	evt.IsBase64Encoded = true
	evt.Headers = map[string]string{
		"Content-Type":       "application/x-www-form-urlencoded",
		"X-Twilio-Signature": "sig",
	}
	evt.RequestContext.DomainName = "voice.example.com"
	evt.RequestContext.RequestID = "apigw-1"

	resp, err := newTestForwarder(upstream.URL).handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<Response></Response>", resp.Body)
	assert.Equal(t, "application/xml", resp.Headers["content-type"])

	require.NotNil(t, got)
	assert.Equal(t, "/voice/speech", got.URL.Path)
	assert.Equal(t, "attempt=1", got.URL.RawQuery)
	assert.Equal(t, "CallSid=CA1&SpeechResult=John", gotBody)
	assert.Equal(t, "sig", got.Header.Get("X-Twilio-Signature"))
	assert.Equal(t, "voice.example.com", got.Header.Get("X-Forwarded-Host"))
	assert.Equal(t, "https", got.Header.Get("X-Forwarded-Proto"))
	assert.Equal(t, "apigw-1", got.Header.Get("X-Request-ID"))
}

func TestHandleUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()

	resp, err := newTestForwarder(upstream.URL).handle(context.Background(), apiEvent(http.MethodPost, "/voice/incoming"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestNewForwarderFromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	_, err := newForwarderFromEnv(logging.New("error"))
	assert.Error(t, err)

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	fwd, err := newForwarderFromEnv(logging.New("error"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", fwd.upstreamBaseURL)
	assert.Equal(t, 3*time.Second, fwd.timeout)

	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	_, err = newForwarderFromEnv(logging.New("error"))
	assert.Error(t, err)
}
