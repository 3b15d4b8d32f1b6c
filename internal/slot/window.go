package slot

import (
	"fmt"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

// Accepted date layouts: ISO and day-first.
var dateLayouts = []string{"2006-01-02", "02-01-2006"}

const timeLayout = "15:04"

// ValidateWindow checks date and time formats and that end follows start.
// The strings themselves are stored unchanged.
func ValidateWindow(date, start, end string) error {
	if !validDate(date) {
		return fmt.Errorf("date %q: %w", date, apperr.ErrValidation)
	}

	st, err := time.Parse(timeLayout, start)
	if err != nil {
		return fmt.Errorf("start time %q: %w", start, apperr.ErrValidation)
	}
	et, err := time.Parse(timeLayout, end)
	if err != nil {
		return fmt.Errorf("end time %q: %w", end, apperr.ErrValidation)
	}
	if !et.After(st) {
		return fmt.Errorf("end time %s not after start time %s: %w", end, start, apperr.ErrValidation)
	}
	return nil
}

func validDate(date string) bool {
	_, ok := parseDate(date)
	return ok
}

func parseDate(date string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CanonicalDate renders date in ISO form for comparison. Unparseable dates
// come back unchanged.
func CanonicalDate(date string) string {
	t, ok := parseDate(date)
	if !ok {
		return date
	}
	return t.Format(dateLayouts[0])
}
