// Package ai provides the chat-completion provider client used by AI
// runners and tool-builder analysis steps, with provider error shapes
// mapped to a stable internal taxonomy.
package ai

import (
	"errors"
	"fmt"
)

// Error codes surfaced to workflow authors. These are stable strings,
// prefixed onto runner error messages (e.g. "AI_RATE_LIMIT: ...").
const (
	CodeMissingKey    = "AI_MISSING_KEY"
	CodeRateLimit     = "AI_RATE_LIMIT"
	CodeAuth          = "AI_AUTH"
	CodeQuota         = "AI_QUOTA"
	CodeModelNotFound = "AI_MODEL_NOT_FOUND"
	CodeInputTooLarge = "AI_INPUT_TOO_LARGE"
	CodeNetwork       = "AI_NETWORK"
)

// Error is a provider failure translated into the internal taxonomy.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a taxonomy error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the taxonomy code from an error, defaulting to
// CodeNetwork for anything unrecognized.
func CodeOf(err error) string {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}

	return CodeNetwork
}
