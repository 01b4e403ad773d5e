package voice

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
	"go.opentelemetry.io/otel"
)

var audioTracer = otel.Tracer("autoparts.internal.voice.audio")

const maxAudioBytes = 8 << 20

// Synthesizer renders prompt text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioStore makes synthesized audio reachable by Twilio.
type AudioStore interface {
	Store(ctx context.Context, key string, audio []byte) (string, error)
}

// HTTPSynthesizer calls a text-to-speech server that accepts {"text": "..."}
// and answers with MP3 audio.
type HTTPSynthesizer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSynthesizer(endpoint string, client *http.Client) *HTTPSynthesizer {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSynthesizer{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("voice: encode tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voice: build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice: tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("voice: tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("voice: read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("voice: tts returned no audio")
	}
	return audio, nil
}

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3AudioStore uploads audio to a bucket and hands out presigned GET URLs.
type S3AudioStore struct {
	bucket  string
	put     s3PutAPI
	presign s3PresignAPI
	ttl     time.Duration
}

func NewS3AudioStore(client *s3.Client, bucket string, ttl time.Duration) *S3AudioStore {
	if client == nil {
		panic("voice: s3 client required")
	}
	return newS3AudioStore(client, s3.NewPresignClient(client), bucket, ttl)
}

func newS3AudioStore(put s3PutAPI, presign s3PresignAPI, bucket string, ttl time.Duration) *S3AudioStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3AudioStore{bucket: bucket, put: put, presign: presign, ttl: ttl}
}

func (s *S3AudioStore) Store(ctx context.Context, key string, audio []byte) (string, error) {
	_, err := s.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audio),
		ContentType: aws.String("audio/mpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("voice: s3 put %s: %w", key, err)
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("voice: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// PromptAudio produces playable audio for prompts. Any failure yields ""
// and the caller falls back to the built-in voice.
type PromptAudio struct {
	synth  Synthesizer
	store  AudioStore
	logger *logging.Logger
}

func NewPromptAudio(synth Synthesizer, store AudioStore, logger *logging.Logger) *PromptAudio {
	if logger == nil {
		logger = logging.Default()
	}
	return &PromptAudio{synth: synth, store: store, logger: logger}
}

// URL returns a playable URL for text, or "" when audio is unavailable.
func (p *PromptAudio) URL(ctx context.Context, callID, text string) string {
	if p == nil || p.synth == nil || p.store == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	ctx, span := audioTracer.Start(ctx, "voice.prompt_audio")
	defer span.End()

	audio, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("prompt synthesis failed; using built-in voice", "call_id", callID, "error", err)
		return ""
	}
	url, err := p.store.Store(ctx, promptKey(text), audio)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("prompt audio upload failed; using built-in voice", "call_id", callID, "error", err)
		return ""
	}
	return url
}

// promptKey addresses audio by content so repeated prompts overwrite one object.
func promptKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "prompts/" + hex.EncodeToString(sum[:16]) + ".mp3"
}
