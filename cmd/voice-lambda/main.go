// Command voice-lambda relays API Gateway voice webhooks to the API service.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

var voiceRoutes = map[string]bool{
	"/voice/incoming": true,
	"/voice/speech":   true,
	"/voice/status":   true,
}

type forwarder struct {
	upstreamBaseURL string
	timeout         time.Duration
	client          *http.Client
	logger          *logging.Logger
}

func newForwarderFromEnv(logger *logging.Logger) (*forwarder, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("UPSTREAM_BASE_URL is required")
	}
	timeout := 8 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}
	return &forwarder{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		timeout:         timeout,
		client:          &http.Client{Timeout: timeout},
		logger:          logger,
	}, nil
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	fwd, err := newForwarderFromEnv(logger)
	if err != nil {
		logger.Error("voice lambda misconfigured", "error", err)
		os.Exit(1)
	}
	lambda.Start(fwd.handle)
}

func (f *forwarder) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}
	if !voiceRoutes[path] {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := f.upstreamBaseURL + path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	if ct := headerValue(evt.Headers, "content-type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	copyHeader(req.Header, evt.Headers, "x-twilio-signature")

	// The signature covers the public URL, so the API must see the gateway host.
	host := strings.TrimSpace(evt.RequestContext.DomainName)
	if host == "" {
		host = strings.TrimSpace(headerValue(evt.Headers, "host"))
	}
	if host != "" {
		req.Header.Set("X-Forwarded-Host", host)
	}
	proto := strings.TrimSpace(headerValue(evt.Headers, "x-forwarded-proto"))
	if proto == "" {
		proto = "https"
	}
	req.Header.Set("X-Forwarded-Proto", proto)
	if id := evt.RequestContext.RequestID; id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("voice upstream failed", "path", path, "error", err)
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadGateway, Body: "upstream error"}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func copyHeader(dst http.Header, src map[string]string, header string) {
	if value := strings.TrimSpace(headerValue(src, header)); value != "" {
		dst.Set(header, value)
	}
}
