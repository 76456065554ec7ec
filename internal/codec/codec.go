// Package codec converts between a set of files and the single text payload
// exchanged with the model, and removes the markdown fences models tend to
// wrap their replies in.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

const fenceToken = "```"

// Payload maps a file path to that file's full text.
type Payload map[string]string

// Keys returns the payload's paths in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode renders p as a flat JSON object. HTML characters are left
// unescaped so the model sees source text as written.
func Encode(p Payload) (string, error) {
	if p == nil {
		p = Payload{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string(p)); err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode recovers a payload from a raw model reply. Fences are stripped
// first; what remains must be a JSON object whose values are all strings.
func Decode(raw string) (Payload, error) {
	body := strings.TrimSpace(StripFence(raw))
	if body == "" {
		return nil, malformed(errors.New("empty reply"))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed(fmt.Errorf("reply is not valid JSON: %w", err))
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, malformed(errors.New("unexpected data after JSON value"))
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed(fmt.Errorf("expected a JSON object, got %s", kindOf(v)))
	}
	payload := make(Payload, len(obj))
	for path, value := range obj {
		s, ok := value.(string)
		if !ok {
			return nil, malformed(fmt.Errorf("value for %q is %s, not a string", path, kindOf(value)))
		}
		payload[path] = s
	}
	return payload, nil
}

// StripFence removes a markdown code fence wrapping text: an opening line of
// three backticks with an optional language tag and a closing line of three
// backticks. Nested fences are peeled until none remain, so applying it twice
// is the same as applying it once. Unfenced text is returned unchanged.
func StripFence(text string) string {
	for {
		inner, ok := stripOnce(text)
		if !ok {
			return text
		}
		text = inner
	}
}

// Fence wraps text in a fence tagged with lang, which may be empty.
func Fence(text, lang string) string {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return fenceToken + lang + "\n" + text + fenceToken
}

func stripOnce(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, fenceToken) {
		return text, false
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return text, false
	}
	if !isLanguageTag(strings.TrimSpace(s[len(fenceToken):nl])) {
		return text, false
	}

	body := s[nl+1:]
	if !strings.HasSuffix(body, fenceToken) {
		return text, false
	}
	body = strings.TrimSuffix(body, fenceToken)
	// the closing fence has to sit on its own line
	if body != "" && !strings.HasSuffix(body, "\n") {
		return text, false
	}
	return body, true
}

func isLanguageTag(tag string) bool {
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("+#._-", r):
		default:
			return false
		}
	}
	return true
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case json.Number:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func malformed(err error) error {
	return failure.New(failure.ErrMalformedResponse, "decode", "", err)
}
