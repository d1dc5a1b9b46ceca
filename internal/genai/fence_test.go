package genai

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\nhello\n```",
			want:  "hello",
		},
		{
			name:  "markdown fence with surrounding whitespace",
			input: "  ```markdown\n# Title\nbody\n```  ",
			want:  "# Title\nbody",
		},
		{
			name:  "no fence",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "fence without closing",
			input: "```json\n{\"a\": 1}",
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("", 5))
}

func TestTruncate_DoesNotSplitRunes(t *testing.T) {
	// "héllo": é is two bytes (0xC3 0xA9); cutting at byte 2 would land
	// mid-rune.
	got := Truncate("héllo", 2)
	assert.Equal(t, "h", got)
	assert.True(t, utf8.ValidString(got))

	// Cut right after the full rune keeps it.
	assert.Equal(t, "hé", Truncate("héllo", 3))

	// Four-byte emoji truncated anywhere inside collapses to the prefix.
	got = Truncate("a\U0001F600b", 3)
	assert.Equal(t, "a", got)
	assert.True(t, utf8.ValidString(got))
}
