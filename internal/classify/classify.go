// ABOUTME: Thinking-level router for incoming turns
// ABOUTME: Maps turn text to a reasoning effort tier based on hardware vocabulary

package classify

import "strings"

// Tier is the reasoning effort requested from the model for one turn.
type Tier string

const (
	// TierLow requests fast, shallow reasoning for casual chat.
	TierLow Tier = "low"
	// TierHigh requests deep reasoning for hardware problems.
	TierHigh Tier = "high"
)

// complexKeywords are the hardware-debugging terms that warrant deep
// reasoning. Matched as case-insensitive substrings.
var complexKeywords = []string{
	"schematic",
	"pinout",
	"voltage",
	"i2s",
	"buffer",
	"debug",
}

// Classify maps turn text to an effort tier. It is pure and total: any
// input, including the empty string, yields a valid tier.
func Classify(text string) Tier {
	lower := strings.ToLower(text)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return TierHigh
		}
	}
	return TierLow
}
