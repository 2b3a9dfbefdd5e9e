package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atomweather/atomweather/pkg/observation"
)

// Feed parsing failures callers branch on.
var (
	// ErrInvalidFormat marks a line that is not key:value, or has an empty
	// key or value.
	ErrInvalidFormat = errors.New("feed: invalid format")

	// ErrMissingID marks a feed without the mandatory id field.
	ErrMissingID = errors.New("feed: missing required field: id")
)

// Parse converts feed file content into an observation record. Each non-empty
// line is key:value, split on the first colon, with surrounding whitespace
// trimmed. Blank lines are ignored.
func Parse(data []byte) (observation.Record, error) {
	rec := make(observation.Record)

	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidFormat, i+1, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return nil, fmt.Errorf("%w: line %d: empty key or value", ErrInvalidFormat, i+1)
		}
		rec[key] = value
	}

	if rec.ID() == "" {
		return nil, ErrMissingID
	}
	return rec, nil
}
