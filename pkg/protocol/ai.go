package protocol

import "context"

// ChatMessage is one message in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-agnostic shape of a text generation call.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// AIClient is a chat-completion capability. Provider-specific error
// shapes are opaque to callers; implementations map them to the error
// taxonomy in pkg/ai.
type AIClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}
