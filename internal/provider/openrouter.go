package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/revrost/go-openrouter"
)

// OpenRouterClient talks to the OpenRouter chat completions API.
type OpenRouterClient struct {
	client      *openrouter.Client
	model       string
	instruction string
	timeout     time.Duration
}

// NewOpenRouterClient creates an OpenRouter client.
func NewOpenRouterClient(opts Options) (*OpenRouterClient, error) {
	if opts.APIKey == "" {
		return nil, missingKey(APITypeOpenRouter, "OPENROUTER_API_KEY")
	}
	config := openrouter.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	return &OpenRouterClient{
		client:      openrouter.NewClientWithConfig(*config),
		model:       opts.Model,
		instruction: opts.Instruction,
		timeout:     opts.Timeout,
	}, nil
}

// Send posts the instruction, conv and prompt as one chat completion.
func (o *OpenRouterClient) Send(ctx context.Context, prompt string, conv Conversation) (string, Conversation, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model:    o.model,
		Messages: openRouterMessages(o.instruction, conv, prompt),
	})
	if err != nil {
		return "", conv, fmt.Errorf("openrouter request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", conv, errors.New("openrouter returned no choices")
	}

	reply := resp.Choices[0].Message.Content.Text
	return reply, conv.Exchange(prompt, reply), nil
}

// Close does nothing; the client holds no connection of its own.
func (o *OpenRouterClient) Close() error {
	return nil
}

func openRouterMessages(instruction string, conv Conversation, prompt string) []openrouter.ChatCompletionMessage {
	messages := make([]openrouter.ChatCompletionMessage, 0, len(conv.Turns)+2)
	if instruction != "" {
		messages = append(messages, openRouterMessage(openrouter.ChatMessageRoleSystem, instruction))
	}
	for _, turn := range conv.Turns {
		switch turn.Role {
		case RoleSystem:
			messages = append(messages, openRouterMessage(openrouter.ChatMessageRoleSystem, turn.Content))
		case RoleAssistant:
			messages = append(messages, openRouterMessage(openrouter.ChatMessageRoleAssistant, turn.Content))
		default:
			messages = append(messages, openRouterMessage(openrouter.ChatMessageRoleUser, turn.Content))
		}
	}
	return append(messages, openRouterMessage(openrouter.ChatMessageRoleUser, prompt))
}

func openRouterMessage(role, text string) openrouter.ChatCompletionMessage {
	return openrouter.ChatCompletionMessage{Role: role, Content: openrouter.Content{Text: text}}
}
