package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Conversation roles as stored in a history file.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered list of prior turns sent along with a prompt.
// It is a value: Append returns a new Conversation and leaves the receiver
// untouched, so one run can hand it from call to call without sharing.
type Conversation struct {
	Turns []Turn
}

// Append returns a copy of c with the given turns added.
func (c Conversation) Append(turns ...Turn) Conversation {
	next := make([]Turn, 0, len(c.Turns)+len(turns))
	next = append(next, c.Turns...)
	next = append(next, turns...)
	return Conversation{Turns: next}
}

// Exchange returns c extended with a user prompt and the assistant's reply.
func (c Conversation) Exchange(prompt, reply string) Conversation {
	return c.Append(
		Turn{Role: RoleUser, Content: prompt},
		Turn{Role: RoleAssistant, Content: reply},
	)
}

// Len returns the number of turns.
func (c Conversation) Len() int {
	return len(c.Turns)
}

// LoadConversation reads a JSON list of role/content turns. A missing file
// yields an empty conversation.
func LoadConversation(path string) (Conversation, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Conversation{}, nil
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to read history: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return Conversation{}, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	for i, turn := range turns {
		switch turn.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return Conversation{}, fmt.Errorf("history %s: turn %d has unknown role %q", path, i, turn.Role)
		}
	}
	return Conversation{Turns: turns}, nil
}

// SaveConversation writes c as an indented JSON list of turns.
func SaveConversation(path string, c Conversation) error {
	turns := c.Turns
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
