package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

var samplePayloads = []Payload{
	{},
	{"a.py": "print(1)\n"},
	{
		"src/main.rs":   "fn main() {\n    println!(\"<hi> & bye\");\n}\n",
		"lib/util.js":   "const x = `template ${y}`;\r\n",
		"deep/dir/x.c":  "",
		"unicode/ü.py":  "# héllo wörld ✓\n",
		"fenced/doc.ts": "// ```ts\n// example\n// ```\n",
	},
}

func TestRoundTrip(t *testing.T) {
	for _, p := range samplePayloads {
		encoded, err := Encode(p)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, p, decoded)
	}
}

func TestRoundTripThroughFences(t *testing.T) {
	for _, p := range samplePayloads {
		encoded, err := Encode(p)
		require.NoError(t, err)

		for _, lang := range []string{"", "json", "python"} {
			decoded, err := Decode(Fence(encoded, lang))
			require.NoError(t, err, "fence tag %q", lang)
			assert.Equal(t, p, decoded, "fence tag %q", lang)
		}
	}
}

func TestEncodeKeepsHTMLAndNil(t *testing.T) {
	encoded, err := Encode(Payload{"a.js": "if (a < b && c > d) {}"})
	require.NoError(t, err)
	assert.Equal(t, `{"a.js":"if (a < b && c > d) {}"}`, encoded)

	encoded, err = Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", encoded)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"fence only", "```json\n```"},
		{"not json", "Sure! Here are your files."},
		{"array", `["a.py"]`},
		{"null", "null"},
		{"nested object", `{"a.py": {"content": "x"}}`},
		{"number value", `{"a.py": 1}`},
		{"trailing data", `{"a.py": "x"} {"b.py": "y"}`},
		{"truncated", "```json\n{\"a.py\": \"x\"\n```"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrMalformedResponse)
		})
	}
}

func TestDecodeToleratesWhitespaceAroundFence(t *testing.T) {
	decoded, err := Decode("\n\n```json\n{\"a.py\": \"x\"}\n```\n  ")
	require.NoError(t, err)
	assert.Equal(t, Payload{"a.py": "x"}, decoded)
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"python tag", "```python\n# commented\nprint(1)\n```", "# commented\nprint(1)\n"},
		{"json tag", "```json\n{\"a\": \"b\"}\n```", "{\"a\": \"b\"}\n"},
		{"no tag", "```\nint x;\n```", "int x;\n"},
		{"unfenced", "print(1)\n", "print(1)\n"},
		{"tag with symbols", "```c++\nint x;\n```", "int x;\n"},
		{"crlf", "```py\r\nx = 1\r\n```\r\n", "x = 1\r\n"},
		{"empty block", "```\n```", ""},
		{"opening only", "```python\nprint(1)\n", "```python\nprint(1)\n"},
		{"closing only", "print(1)\n```", "print(1)\n```"},
		{"closing not on own line", "```\nprint(1)```", "```\nprint(1)```"},
		{"prose in tag position", "``` here you go\nx\n```", "``` here you go\nx\n```"},
		{"single line", "```x```", "```x```"},
		{"inner fence kept", "```md\ntext\n```go\nx\n```\nmore\n```", "text\n```go\nx\n```\nmore\n"},
		{"nested fences", "```\n```python\nx = 1\n```\n```", "x = 1\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, StripFence(test.input))
		})
	}
}

func TestStripFenceIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"```python\nprint(1)\n```",
		"```\n```\nfoo\n```\n```",
		"```\n```json\n{}\n```\n```",
		"  ```js\nlet a\n```  ",
		"```md\ntext\n```go\nx\n```\nmore\n```",
		"```",
		"``````",
	}

	for _, in := range inputs {
		once := StripFence(in)
		assert.Equal(t, once, StripFence(once), "input %q", in)
	}
}

func TestFence(t *testing.T) {
	assert.Equal(t, "```go\nx\n```", Fence("x", "go"))
	assert.Equal(t, "```\nx\n```", Fence("x\n", ""))
	assert.Equal(t, "x\n", StripFence(Fence("x", "go")))
}

func TestPayloadKeys(t *testing.T) {
	p := Payload{"b.py": "", "a.py": "", "c/d.rs": ""}
	assert.Equal(t, []string{"a.py", "b.py", "c/d.rs"}, p.Keys())
}
