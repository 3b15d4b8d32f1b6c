// Package idgen derives sequential entity ids of the form <prefix><digits>
// from the last persisted id.
package idgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

const DefaultWidth = 3

// FormatError reports a stored id that does not match <prefix><digits>.
type FormatError struct {
	Prefix string
	ID     string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed id %q for prefix %q", e.ID, e.Prefix)
}

// Unwrap classifies a malformed stored id as corrupt persisted data.
func (e *FormatError) Unwrap() error { return apperr.ErrPersistence }

// Generator produces the id following LastID.
//
// With SkipSentinel unset an empty collection yields the zero id
// (e.g. AP000). That zero id is also a legitimate record id, so a
// collection that empties after holding only AP000 hands AP000 out again.
// With SkipSentinel set the zero id is treated as the last id and the
// first record gets <prefix>001.
type Generator struct {
	Prefix       string
	Width        int
	SkipSentinel bool
}

func (g Generator) width() int {
	if g.Width <= 0 {
		return DefaultWidth
	}
	return g.Width
}

// Zero returns the canonical zero id, e.g. AP000.
func (g Generator) Zero() string {
	return g.Prefix + strings.Repeat("0", g.width())
}

// Next returns the id after lastID. An empty lastID means no records exist.
func (g Generator) Next(lastID string) (string, error) {
	if lastID == "" {
		if !g.SkipSentinel {
			return g.Zero(), nil
		}
		lastID = g.Zero()
	}

	if !strings.HasPrefix(lastID, g.Prefix) {
		return "", &FormatError{Prefix: g.Prefix, ID: lastID}
	}
	digits := lastID[len(g.Prefix):]
	if digits == "" {
		return "", &FormatError{Prefix: g.Prefix, ID: lastID}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", &FormatError{Prefix: g.Prefix, ID: lastID}
		}
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", &FormatError{Prefix: g.Prefix, ID: lastID}
	}

	return fmt.Sprintf("%s%0*d", g.Prefix, len(digits), n+1), nil
}

// NextID is the three digit, sentinel-on-empty form used by most collections.
func NextID(prefix, lastID string) (string, error) {
	return Generator{Prefix: prefix}.Next(lastID)
}

// Less orders ids of one collection by their numeric suffix, assuming a
// shared prefix.
func Less(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
