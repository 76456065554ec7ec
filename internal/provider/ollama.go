package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://localhost:11434/api"

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	BaseURL     string
	Model       string
	Instruction string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// NewOllamaClient creates an Ollama client. No credential is needed.
func NewOllamaClient(opts Options) *OllamaClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaClient{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Model:       opts.Model,
		Instruction: opts.Instruction,
		Timeout:     opts.Timeout,
		HTTPClient:  &http.Client{},
	}
}

// Send posts a non-streaming chat request.
func (o *OllamaClient) Send(ctx context.Context, prompt string, conv Conversation) (string, Conversation, error) {
	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.Model,
		Messages: o.messages(conv, prompt),
		Stream:   false,
	})
	if err != nil {
		return "", conv, fmt.Errorf("error marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", conv, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return "", conv, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", conv, fmt.Errorf("error reading response: %w", err)
	}

	var chat ollamaChatResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(data, &chat) == nil && chat.Error != "" {
			return "", conv, fmt.Errorf("ollama request failed with status %d: %s", resp.StatusCode, chat.Error)
		}
		return "", conv, fmt.Errorf("ollama request failed with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &chat); err != nil {
		return "", conv, fmt.Errorf("error parsing response: %w", err)
	}
	if chat.Error != "" {
		return "", conv, errors.New(chat.Error)
	}

	reply := chat.Message.Content
	return reply, conv.Exchange(prompt, reply), nil
}

// Close does nothing.
func (o *OllamaClient) Close() error {
	return nil
}

func (o *OllamaClient) messages(conv Conversation, prompt string) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(conv.Turns)+2)
	if o.Instruction != "" {
		messages = append(messages, ollamaMessage{Role: RoleSystem, Content: o.Instruction})
	}
	for _, turn := range conv.Turns {
		messages = append(messages, ollamaMessage{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, ollamaMessage{Role: RoleUser, Content: prompt})
}
