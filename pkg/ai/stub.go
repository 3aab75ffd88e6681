package ai

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// StubClient is a canned-response AIClient for tests and local
// development without provider credentials.
type StubClient struct {
	Response string
	Err      error

	// Requests records every call for assertions.
	Requests []protocol.ChatRequest
}

// Complete returns the canned response or error.
func (s *StubClient) Complete(_ context.Context, req protocol.ChatRequest) (string, error) {
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return "", s.Err
	}

	return s.Response, nil
}
