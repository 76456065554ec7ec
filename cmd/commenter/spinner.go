package main

import (
	"context"
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/Hekzory/CommentLLM/internal/provider"
)

// spinnerDelay is the time between spinner frames.
const spinnerDelay = 100 * time.Millisecond

// spinnerClient shows a spinner on w while a request is in flight.
type spinnerClient struct {
	provider.Client
	w    io.Writer
	text string
}

func newSpinnerClient(client provider.Client, w io.Writer, text string) *spinnerClient {
	return &spinnerClient{Client: client, w: w, text: text}
}

func (s *spinnerClient) Send(ctx context.Context, prompt string, conv provider.Conversation) (string, provider.Conversation, error) {
	spinner, err := pterm.DefaultSpinner.
		WithWriter(s.w).
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(spinnerDelay).
		WithRemoveWhenDone(true).
		Start(s.text)
	if err == nil {
		defer spinner.Stop()
	}
	return s.Client.Send(ctx, prompt, conv)
}

func spinnerText(api provider.APIType) string {
	switch api {
	case provider.APITypeOpenRouter:
		return "OpenRouter is processing your code..."
	case provider.APITypeOllama:
		return "Local model is working..."
	default:
		return "Gemini is thinking..."
	}
}
