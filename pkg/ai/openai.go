package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flowmatic/flowmatic/pkg/protocol"
)

const defaultModel = "gpt-4o-mini"

// OpenAIClient implements protocol.AIClient on top of the OpenAI chat
// completions API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient builds a client for the given API key. The key may be
// empty; the failure is reported per-call so a workflow without AI
// nodes never notices.
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// Complete performs one chat completion and returns the generated text.
func (c *OpenAIClient) Complete(ctx context.Context, req protocol.ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", translateError(err)
	}

	if len(completion.Choices) == 0 {
		return "", NewError(CodeNetwork, "provider returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}

// translateError maps the provider's opaque error shapes onto the
// internal taxonomy.
func translateError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return NewError(CodeNetwork, err.Error())
	}

	message := apiErr.Error()

	switch apiErr.StatusCode {
	case 401:
		if strings.Contains(message, "api key") || strings.Contains(message, "API key") {
			return NewError(CodeMissingKey, message)
		}

		return NewError(CodeAuth, message)
	case 403:
		return NewError(CodeAuth, message)
	case 404:
		return NewError(CodeModelNotFound, message)
	case 429:
		if strings.Contains(message, "quota") {
			return NewError(CodeQuota, message)
		}

		return NewError(CodeRateLimit, message)
	case 400, 413:
		if strings.Contains(message, "context length") || strings.Contains(message, "maximum context") || apiErr.StatusCode == 413 {
			return NewError(CodeInputTooLarge, message)
		}

		return NewError(CodeNetwork, message)
	default:
		return NewError(CodeNetwork, message)
	}
}
