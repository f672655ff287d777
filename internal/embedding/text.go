package embedding

import (
	"strings"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// Text is a node of an indentable text tree, either a Line or a Group.
type Text interface {
	render(depth int) string
}

// Line is a single line of output.
type Line string

func (l Line) render(depth int) string {
	return strings.Repeat(" ", depth) + string(l)
}

// Group joins its children with newlines, one level deeper when Indent is
// set. An empty group renders as an empty line.
type Group struct {
	Indent   bool
	Children []Text
}

func (g Group) render(depth int) string {
	if g.Indent {
		depth++
	}
	parts := make([]string, len(g.Children))
	for i, c := range g.Children {
		parts[i] = c.render(depth)
	}
	return strings.Join(parts, "\n")
}

// Indent groups children one level deeper than their parent.
func Indent(children ...Text) Group { return Group{Indent: true, Children: children} }

// Spread groups children at their parent's level.
func Spread(children ...Text) Group { return Group{Children: children} }

// Render renders t starting at depth zero.
func Render(t Text) string { return t.render(0) }

func lines(s string) []Text {
	parts := strings.Split(s, "\n")
	out := make([]Text, len(parts))
	for i, p := range parts {
		out[i] = Line(p)
	}
	return out
}

func noteBlock(tag string, n models.Note) Group {
	var fields []Text
	if n.Title != "" {
		fields = append(fields, Line("<title>"+n.Title+"</title>"))
	}
	if n.Content != "" {
		fields = append(fields, Spread(Line("<body>"), Indent(lines(n.Content)...), Line("</body>")))
	}
	if n.Metadata != "" {
		fields = append(fields, Line("<metadata>"+n.Metadata+"</metadata>"))
	}
	return Spread(Line("<"+tag+">"), Indent(fields...), Line("</"+tag+">"))
}

// BuildText renders note with its ancestors, root first, as the tagged text
// that gets embedded. The first ancestor is tagged root, the rest reply, and
// the note itself mainReply. A note without any text yields "".
func BuildText(lineage []models.Note, note models.Note) string {
	if note.Empty() {
		return ""
	}
	ancestors := make([]Text, len(lineage))
	for i, a := range lineage {
		tag := "reply"
		if i == 0 {
			tag = "root"
		}
		ancestors[i] = noteBlock(tag, a)
	}
	return Render(Spread(
		Line("<context>"),
		Indent(ancestors...),
		Line("</context>"),
		noteBlock("mainReply", note),
	))
}
