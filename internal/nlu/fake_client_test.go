package nlu

import (
	"context"
	"sync"
	"time"
)

type stubLLMClient struct {
	mu       sync.Mutex
	text     string
	err      error
	delay    time.Duration
	requests []LLMRequest
	// deadlines records whether each call's context carried a deadline.
	deadlines []bool
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	_, hasDeadline := ctx.Deadline()
	s.requests = append(s.requests, req)
	s.deadlines = append(s.deadlines, hasDeadline)
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

func (s *stubLLMClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
