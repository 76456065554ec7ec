package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

func TestConversationValueSemantics(t *testing.T) {
	base := Conversation{}.Append(Turn{Role: RoleUser, Content: "a"})
	next := base.Exchange("b", "c")

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 3, next.Len())
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "c"}, next.Turns[2])

	// appending to base again must not clobber next
	other := base.Append(Turn{Role: RoleUser, Content: "x"})
	assert.Equal(t, "b", next.Turns[1].Content)
	assert.Equal(t, "x", other.Turns[1].Content)
}

func TestLoadAndSaveConversation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	conv, err := LoadConversation(path)
	require.NoError(t, err)
	assert.Zero(t, conv.Len())

	conv = conv.Exchange("print(1)", "# prints one\nprint(1)")
	require.NoError(t, SaveConversation(path, conv))

	loaded, err := LoadConversation(path)
	require.NoError(t, err)
	assert.Equal(t, conv, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role": "assistant"`)
}

func TestSaveEmptyConversation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, SaveConversation(path, Conversation{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestLoadConversationRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0644))
	_, err := LoadConversation(garbage)
	assert.Error(t, err)

	badRole := filepath.Join(dir, "role.json")
	require.NoError(t, os.WriteFile(badRole, []byte(`[{"role":"tool","content":"x"}]`), 0644))
	_, err = LoadConversation(badRole)
	assert.ErrorContains(t, err, `unknown role "tool"`)
}

func TestParseAPIType(t *testing.T) {
	api, err := ParseAPIType("OpenRouter")
	require.NoError(t, err)
	assert.Equal(t, APITypeOpenRouter, api)

	api, err = ParseAPIType("")
	require.NoError(t, err)
	assert.Equal(t, APITypeGemini, api)

	_, err = ParseAPIType("bard")
	assert.ErrorIs(t, err, failure.ErrConfig)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{API: APITypeGemini})
	assert.ErrorIs(t, err, failure.ErrConfig)
	assert.ErrorContains(t, err, "GOOGLE_API_KEY")

	_, err = New(context.Background(), Options{API: APITypeOpenRouter})
	assert.ErrorIs(t, err, failure.ErrConfig)
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")

	client, err := New(context.Background(), Options{API: APITypeOllama})
	require.NoError(t, err)
	assert.Equal(t, DefaultModels[APITypeOllama], client.(*OllamaClient).Model)
}

func TestClientFunc(t *testing.T) {
	var seen Conversation
	client := ClientFunc(func(_ context.Context, prompt string, conv Conversation) (string, error) {
		seen = conv
		return "re: " + prompt, nil
	})

	prior := Conversation{}.Exchange("q0", "a0")
	reply, next, err := client.Send(context.Background(), "q1", prior)
	require.NoError(t, err)
	assert.Equal(t, "re: q1", reply)
	assert.Equal(t, prior, seen)
	assert.Equal(t, 4, next.Len())

	failing := ClientFunc(func(context.Context, string, Conversation) (string, error) {
		return "", errors.New("boom")
	})
	_, next, err = failing.Send(context.Background(), "q", prior)
	assert.Error(t, err)
	assert.Equal(t, prior, next)
}

func TestOllamaSend(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: RoleAssistant, Content: "# commented\nx = 1\n"},
			Done:    true,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(Options{
		BaseURL:     server.URL + "/api/",
		Model:       "qwen2.5-coder:7b",
		Instruction: "add comments",
	})
	prior := Conversation{}.Exchange("old", "older")

	reply, next, err := client.Send(context.Background(), "x = 1\n", prior)
	require.NoError(t, err)
	assert.Equal(t, "# commented\nx = 1\n", reply)
	assert.Equal(t, 4, next.Len())

	assert.Equal(t, "qwen2.5-coder:7b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, []ollamaMessage{
		{Role: RoleSystem, Content: "add comments"},
		{Role: RoleUser, Content: "old"},
		{Role: RoleAssistant, Content: "older"},
		{Role: RoleUser, Content: "x = 1\n"},
	}, got.Messages)
}

func TestOllamaErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer server.Close()

	client := NewOllamaClient(Options{BaseURL: server.URL, Model: "nope"})
	_, next, err := client.Send(context.Background(), "x", Conversation{})

	assert.ErrorContains(t, err, "status 404")
	assert.ErrorContains(t, err, "model 'nope' not found")
	assert.Zero(t, next.Len())
}

func TestOllamaTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewOllamaClient(Options{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, _, err := client.Send(context.Background(), "x", Conversation{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeminiHistoryMapping(t *testing.T) {
	conv := Conversation{Turns: []Turn{
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}}

	history := geminiHistory(conv)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("a")}, history[1].Parts)
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("```python\n"), genai.Text("x\n```")}},
	}}}
	text, err := geminiText(resp)
	require.NoError(t, err)
	assert.Equal(t, "```python\nx\n```", text)

	_, err = geminiText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestOpenRouterMessages(t *testing.T) {
	conv := Conversation{}.Exchange("q", "a")
	messages := openRouterMessages("be terse", conv, "code")

	require.Len(t, messages, 4)
	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.Role
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "code", messages[3].Content.Text)
}

func TestOpenRouterBaseURL(t *testing.T) {
	var (
		path string
		got  struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"// commented\nint x;\n"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenRouterClient(Options{
		APIKey:      "sk-test",
		Model:       "google/gemini-flash-1.5",
		BaseURL:     server.URL + "/api/v1/",
		Instruction: "add comments",
	})
	require.NoError(t, err)

	reply, next, err := client.Send(context.Background(), "int x;\n", Conversation{})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/chat/completions", path)
	assert.Equal(t, "google/gemini-flash-1.5", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "int x;\n", got.Messages[1].Content)
	assert.Equal(t, "// commented\nint x;\n", reply)
	assert.Equal(t, 2, next.Len())
}
