// Package mention parses note references of the form [[id]] out of note
// content.
package mention

import "strings"

const (
	openMark  = "[["
	closeMark = "]]"
)

// Kind distinguishes plain text from references.
type Kind int

const (
	Text Kind = iota
	Mention
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Mention:
		return "mention"
	default:
		panic("mention: unknown kind")
	}
}

// Token is one span of the parsed content. Raw is the exact source text of
// the span, so concatenating Raw over all tokens yields the input. For a
// Mention, NoteID is the referenced id without brackets.
type Token struct {
	Kind   Kind   `json:"kind"`
	Raw    string `json:"raw"`
	NoteID string `json:"note_id,omitempty"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Parse splits content into alternating text and mention tokens covering
// the whole input. An id may not be empty or contain brackets or newlines;
// anything that does not form a valid reference stays text. Adjacent text is
// merged so two text tokens never follow each other.
func Parse(content string) []Token {
	var tokens []Token
	textStart := 0
	i := 0
	for i < len(content) {
		j := strings.Index(content[i:], openMark)
		if j < 0 {
			break
		}
		j += i
		id, ok := scanID(content[j+len(openMark):])
		if !ok {
			// Retry from the second bracket so "[[[x]]" finds "[[x]]".
			i = j + 1
			continue
		}
		end := j + len(openMark) + len(id) + len(closeMark)
		if j > textStart {
			tokens = append(tokens, Token{Kind: Text, Raw: content[textStart:j], Start: textStart, End: j})
		}
		tokens = append(tokens, Token{Kind: Mention, Raw: content[j:end], NoteID: id, Start: j, End: end})
		textStart = end
		i = end
	}
	if textStart < len(content) {
		tokens = append(tokens, Token{Kind: Text, Raw: content[textStart:], Start: textStart, End: len(content)})
	}
	return tokens
}

// scanID reads an id terminated by "]]" at the start of s.
func scanID(s string) (string, bool) {
	for k := 0; k < len(s); k++ {
		switch s[k] {
		case '[', '\n', '\r':
			return "", false
		case ']':
			if k == 0 || !strings.HasPrefix(s[k:], closeMark) {
				return "", false
			}
			return s[:k], true
		}
	}
	return "", false
}

// Targets returns the distinct referenced note ids in order of first
// appearance.
func Targets(content string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, tok := range Parse(content) {
		if tok.Kind != Mention || seen[tok.NoteID] {
			continue
		}
		seen[tok.NoteID] = true
		ids = append(ids, tok.NoteID)
	}
	return ids
}

// Format renders a reference to noteID.
func Format(noteID string) string {
	return openMark + noteID + closeMark
}

// Insert adds a reference to noteID at byte offset pos of content, or at the
// end when pos is negative or past the end.
func Insert(content, noteID string, pos int) string {
	link := Format(noteID)
	if pos < 0 || pos >= len(content) {
		return content + link
	}
	return content[:pos] + link + content[pos:]
}

// Join concatenates the raw text of tokens.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Raw)
	}
	return b.String()
}
