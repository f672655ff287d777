package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

func TestRenderIndentation(t *testing.T) {
	tree := Spread(Line("a"), Indent(Line("b"), Indent(Line("c"))), Line("d"))
	assert.Equal(t, "a\n b\n  c\nd", Render(tree))
}

func TestBuildTextWithLineage(t *testing.T) {
	root := models.Note{Title: "Trip", Content: "day one\nday two"}
	reply := models.Note{Content: "packing list"}
	note := models.Note{Title: "Socks", Metadata: "priority: high"}

	want := "<context>\n" +
		" <root>\n" +
		"  <title>Trip</title>\n" +
		"  <body>\n" +
		"   day one\n" +
		"   day two\n" +
		"  </body>\n" +
		" </root>\n" +
		" <reply>\n" +
		"  <body>\n" +
		"   packing list\n" +
		"  </body>\n" +
		" </reply>\n" +
		"</context>\n" +
		"<mainReply>\n" +
		" <title>Socks</title>\n" +
		" <metadata>priority: high</metadata>\n" +
		"</mainReply>"

	assert.Equal(t, want, BuildText([]models.Note{root, reply}, note))
}

func TestBuildTextWithoutLineage(t *testing.T) {
	got := BuildText(nil, models.Note{Title: "x"})
	assert.Equal(t, "<context>\n\n</context>\n<mainReply>\n <title>x</title>\n</mainReply>", got)
}

func TestBuildTextEmptyNote(t *testing.T) {
	parent := models.Note{Title: "has text"}
	assert.Equal(t, "", BuildText([]models.Note{parent}, models.Note{}))
}
