// ABOUTME: Parser for raw model replies
// ABOUTME: Extracts clean display text, the embedded hardware-state block, and the continuation token

package reply

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultSummary is used when the service provided no thought summary.
const DefaultSummary = "Analysing circuit..."

// jsonBlockRe matches a fenced ```json block. Only the first match is
// treated as the hardware-state block.
var jsonBlockRe = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// Parsed is the result of dissecting one raw model reply.
type Parsed struct {
	// CleanText is the reply with the hardware-state block removed and
	// surrounding whitespace trimmed.
	CleanText string
	// State is the decoded hardware-state block, or the idle default when
	// the block is absent or malformed.
	State map[string]any
	// ContinuationToken is the newest non-empty continuation candidate, or
	// empty when the reply carried none.
	ContinuationToken string
	// Summary is the model's reasoning summary, never empty.
	Summary string
}

// DefaultState returns the hardware state reported when a reply carries no
// parseable state block.
func DefaultState() map[string]any {
	return map[string]any{"status": "idle"}
}

// Parse dissects a raw reply. candidates are the continuation markers found
// in the reply's structured parts, in part order; the last non-empty one
// wins because only the final segment of a multi-part reply represents
// resumable state. A malformed state block never fails the parse: the text
// is returned untouched and the default state is used.
func Parse(raw string, candidates []string, summary string) Parsed {
	p := Parsed{
		CleanText:         strings.TrimSpace(raw),
		State:             DefaultState(),
		ContinuationToken: lastNonEmpty(candidates),
		Summary:           summary,
	}
	if p.Summary == "" {
		p.Summary = DefaultSummary
	}

	match := jsonBlockRe.FindStringSubmatch(raw)
	if match == nil {
		return p
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &state); err != nil || state == nil {
		// Block failed to parse: keep it visible as ordinary text.
		return p
	}

	p.State = state
	p.CleanText = strings.TrimSpace(strings.Replace(raw, match[0], "", 1))
	return p
}

// lastNonEmpty scans candidates from the end and returns the first
// non-empty entry found.
func lastNonEmpty(candidates []string) string {
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i] != "" {
			return candidates[i]
		}
	}
	return ""
}
