package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrUnparseable is the terminal result of the parser chain: no
// strategy recovered a JSON document from the model's output.
var ErrUnparseable = errors.New("unparseable model output")

var (
	fencedBlockRe = regexp.MustCompile("```(?:json)?\\n?([\\s\\S]*?)\\n?```")
	embeddedObjRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// DecodeObject recovers a JSON document from model output into v. The
// strategies run in order, first success wins: a fenced code block, a
// bare JSON object found anywhere in the text, then the raw text
// itself. Failure of every strategy returns ErrUnparseable.
func DecodeObject(text string, v any) error {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}
	if m := embeddedObjRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	return fmt.Errorf("%w: no strategy produced valid JSON", ErrUnparseable)
}
