package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hekzory/CommentLLM/internal/provider"
)

// countingWriter counts Write calls from any goroutine.
type countingWriter struct {
	mu     sync.Mutex
	writes int
	bytes  int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.bytes += len(p)
	return len(p), nil
}

func (w *countingWriter) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes, w.bytes
}

func TestSpinnerClientRedrawRate(t *testing.T) {
	slow := provider.ClientFunc(func(ctx context.Context, prompt string, conv provider.Conversation) (string, error) {
		time.Sleep(500 * time.Millisecond)
		return "# c\n" + prompt, nil
	})
	out := &countingWriter{}
	client := newSpinnerClient(slow, out, spinnerText(provider.APITypeOllama))

	reply, conv, err := client.Send(context.Background(), "x = 1\n", provider.Conversation{})
	require.NoError(t, err)
	assert.Equal(t, "# c\nx = 1\n", reply)
	assert.Equal(t, 2, conv.Len())

	// about five frames in half a second
	writes, bytes := out.counts()
	assert.Less(t, writes, 100, "spinner wrote %d times (%d bytes)", writes, bytes)
}
