// Package provider adapts hosted and local LLM APIs to the single call the
// commenter needs: send a prompt with prior turns, get text back.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

// APIType selects the backing API.
type APIType string

const (
	APITypeGemini     APIType = "gemini"
	APITypeOpenRouter APIType = "openrouter"
	APITypeOllama     APIType = "ollama"
)

// Default models per API.
var DefaultModels = map[APIType]string{
	APITypeGemini:     "gemini-1.5-flash",
	APITypeOpenRouter: "google/gemini-flash-1.5",
	APITypeOllama:     "qwen2.5-coder:7b",
}

// ParseAPIType maps a configured provider name to an APIType.
func ParseAPIType(name string) (APIType, error) {
	switch api := APIType(strings.ToLower(strings.TrimSpace(name))); api {
	case APITypeGemini, APITypeOpenRouter, APITypeOllama:
		return api, nil
	case "":
		return APITypeGemini, nil
	default:
		return "", failure.New(failure.ErrConfig, "provider", "",
			fmt.Errorf("unknown provider %q (want gemini, openrouter or ollama)", name))
	}
}

// Client sends one prompt and returns the model's text reply together with
// conv extended by the prompt and the reply. On error conv is returned
// unchanged.
type Client interface {
	Send(ctx context.Context, prompt string, conv Conversation) (string, Conversation, error)
	Close() error
}

// Options configures a Client.
type Options struct {
	API         APIType
	Model       string
	APIKey      string
	BaseURL     string
	Instruction string
	// Timeout bounds a single Send. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// New creates the Client selected by opts.API.
func New(ctx context.Context, opts Options) (Client, error) {
	if opts.Model == "" {
		opts.Model = DefaultModels[opts.API]
	}
	switch opts.API {
	case APITypeGemini, "":
		return NewGeminiClient(ctx, opts)
	case APITypeOpenRouter:
		return NewOpenRouterClient(opts)
	case APITypeOllama:
		return NewOllamaClient(opts), nil
	default:
		return nil, failure.New(failure.ErrConfig, "provider", "", fmt.Errorf("unknown provider %q", opts.API))
	}
}

// ClientFunc adapts a plain function to Client. The conversation handed to
// the function is the prior one; the exchange is appended on success.
type ClientFunc func(ctx context.Context, prompt string, conv Conversation) (string, error)

// Send calls f.
func (f ClientFunc) Send(ctx context.Context, prompt string, conv Conversation) (string, Conversation, error) {
	reply, err := f(ctx, prompt, conv)
	if err != nil {
		return "", conv, err
	}
	return reply, conv.Exchange(prompt, reply), nil
}

// Close does nothing.
func (f ClientFunc) Close() error { return nil }

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func missingKey(api APIType, env string) error {
	return failure.New(failure.ErrConfig, string(api), "",
		fmt.Errorf("no API key configured; set %s or api_key", env))
}
