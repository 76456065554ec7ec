package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client. The instruction, if any, becomes
// the model's system instruction.
func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, missingKey(APITypeGemini, "GOOGLE_API_KEY")
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, failure.New(failure.ErrConfig, string(APITypeGemini), "", fmt.Errorf("failed to create gemini client: %w", err))
	}

	model := client.GenerativeModel(opts.Model)
	if opts.Instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(opts.Instruction)}}
	}

	return &GeminiClient{client: client, model: model, timeout: opts.Timeout}, nil
}

// Send starts a chat session seeded with conv and sends prompt.
func (g *GeminiClient) Send(ctx context.Context, prompt string, conv Conversation) (string, Conversation, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	session := g.model.StartChat()
	session.History = geminiHistory(conv)

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", conv, fmt.Errorf("gemini request failed: %w", err)
	}
	reply, err := geminiText(resp)
	if err != nil {
		return "", conv, err
	}
	return reply, conv.Exchange(prompt, reply), nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// geminiHistory maps turns onto Gemini roles. System turns are dropped since
// the instruction is carried by the model itself.
func geminiHistory(conv Conversation) []*genai.Content {
	var history []*genai.Content
	for _, turn := range conv.Turns {
		role := "user"
		switch turn.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return history
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("gemini returned no candidates (block reason %v)", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("gemini returned an empty candidate (finish reason %v)", candidate.FinishReason)
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}
