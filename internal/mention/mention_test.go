package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimple(t *testing.T) {
	in := "hello [[abc123]] world"
	got := Parse(in)

	require.Len(t, got, 3)
	assert.Equal(t, Token{Kind: Text, Raw: "hello ", Start: 0, End: 6}, got[0])
	assert.Equal(t, Token{Kind: Mention, Raw: "[[abc123]]", NoteID: "abc123", Start: 6, End: 16}, got[1])
	assert.Equal(t, Token{Kind: Text, Raw: " world", Start: 16, End: 22}, got[2])
	assert.Equal(t, in, Join(got))
}

func TestParseReconstructsInput(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"[[a]]",
		"[[a]][[b]]",
		"x [[a]] y [[b]] z",
		"[[",
		"]]",
		"[[]]",
		"[[[x]]",
		"[[a\nb]]",
		"[[a]b]]",
		"unterminated [[abc",
		"nested [[a[[b]]]]",
		"unicode ✓ [[ñote]] ✓",
	}
	for _, in := range inputs {
		toks := Parse(in)
		assert.Equal(t, in, Join(toks), "input %q", in)

		// Spans are contiguous and alternate between kinds of text.
		pos := 0
		for i, tok := range toks {
			assert.Equal(t, pos, tok.Start, "input %q token %d", in, i)
			assert.Equal(t, in[tok.Start:tok.End], tok.Raw)
			pos = tok.End
			if i > 0 && tok.Kind == Text {
				assert.NotEqual(t, Text, toks[i-1].Kind, "adjacent text tokens in %q", in)
			}
		}
		assert.Equal(t, len(in), pos)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"[[]]", "[[a\nb]]", "[[a]b]]", "[[abc"} {
		for _, tok := range Parse(in) {
			assert.Equal(t, Text, tok.Kind, "input %q", in)
		}
	}
}

func TestParseTripleBracket(t *testing.T) {
	got := Parse("[[[x]]")
	require.Len(t, got, 2)
	assert.Equal(t, "[", got[0].Raw)
	assert.Equal(t, "x", got[1].NoteID)
}

func TestTargetsDedupes(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, Targets("[[b]] and [[a]] and [[b]] again"))
	assert.Nil(t, Targets("no references"))
}

func TestInsert(t *testing.T) {
	assert.Equal(t, "see [[n1]]", Insert("see ", "n1", -1))
	assert.Equal(t, "a[[n1]]b", Insert("ab", "n1", 1))
	assert.Equal(t, "ab[[n1]]", Insert("ab", "n1", 10))
	assert.Equal(t, "[[n1]]", Format("n1"))
}
