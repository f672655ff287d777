// Package humanid generates short adjective-noun identifiers such as
// "quiet-harbor" for notes.
package humanid

import (
	"fmt"
	"math/rand/v2"
)

var adjectives = []string{
	"amber", "ancient", "autumn", "bitter", "bold", "brave", "bright", "broken",
	"calm", "clever", "cold", "cool", "crimson", "curly", "damp", "dark",
	"dawn", "delicate", "divine", "dry", "eager", "empty", "falling", "fancy",
	"fragrant", "frosty", "gentle", "golden", "green", "hidden", "holy", "icy",
	"jolly", "late", "lingering", "little", "lively", "long", "lucky", "misty",
	"morning", "muddy", "nameless", "noisy", "odd", "old", "orange", "patient",
	"plain", "polished", "proud", "purple", "quiet", "rapid", "rough", "round",
	"royal", "shiny", "shy", "silent", "small", "snowy", "soft", "solitary",
	"sparkling", "spring", "square", "steep", "still", "summer", "sweet", "swift",
	"tender", "thrumming", "tiny", "twilight", "wandering", "weathered", "white", "wild",
	"winter", "wispy", "withered", "yellow", "young",
}

var nouns = []string{
	"art", "band", "bar", "base", "bird", "block", "boat", "bonus",
	"bread", "breeze", "brook", "bush", "butterfly", "cake", "cell", "cherry",
	"cloud", "credit", "darkness", "dawn", "dew", "disk", "dream", "dust",
	"feather", "field", "fire", "firefly", "flower", "fog", "forest", "frog",
	"frost", "glade", "glitter", "grass", "hall", "hat", "harbor", "haze",
	"heart", "hill", "king", "lab", "lake", "leaf", "limit", "math",
	"meadow", "mode", "moon", "morning", "mountain", "mouse", "mud", "night",
	"paper", "pine", "poetry", "pond", "queen", "rain", "recipe", "resonance",
	"rice", "river", "salad", "scene", "sea", "shadow", "shape", "silence",
	"sky", "smoke", "snow", "snowflake", "sound", "star", "sun", "sunset",
	"surf", "term", "thunder", "tooth", "tree", "truth", "union", "unit",
	"violet", "voice", "water", "waterfall", "wave", "wildflower", "wind", "wood",
}

// New returns a random adjective-noun pair.
func New() string {
	return adjectives[rand.IntN(len(adjectives))] + "-" + nouns[rand.IntN(len(nouns))]
}

// WithSuffix appends a numeric suffix, used when New collides with an id
// already taken.
func WithSuffix(base string, n int) string {
	return fmt.Sprintf("%s-%d", base, n)
}
