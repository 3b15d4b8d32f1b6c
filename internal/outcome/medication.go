package outcome

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

// Inventory is the sole authority on medication names. Lookup is
// case-insensitive and returns the name as stocked.
type Inventory interface {
	CanonicalMedicationName(ctx context.Context, name string) (string, bool, error)
}

// ResolveMedications validates a prescription. An empty list or the single
// entry "none" means no medication; "none" cannot be mixed with names.
// The stored list is comma separated, so a name containing a comma is
// rejected even when the inventory knows it.
func ResolveMedications(ctx context.Context, inv Inventory, names []string) ([]string, error) {
	var entered []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			entered = append(entered, n)
		}
	}

	for _, n := range entered {
		if strings.EqualFold(n, NoMedication) {
			if len(entered) > 1 {
				return nil, fmt.Errorf("%q cannot be combined with medication names: %w", NoMedication, apperr.ErrValidation)
			}
			return nil, nil
		}
	}
	if len(entered) == 0 {
		return nil, nil
	}

	resolved := make([]string, 0, len(entered))
	for _, n := range entered {
		canonical, ok, err := inv.CanonicalMedicationName(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("look up medication %q: %w", n, err)
		}
		if !ok {
			return nil, fmt.Errorf("unknown medication %q: %w", n, apperr.ErrValidation)
		}
		if strings.Contains(canonical, ",") {
			return nil, fmt.Errorf("medication %q cannot be stored: names may not contain commas: %w", canonical, apperr.ErrValidation)
		}
		resolved = append(resolved, canonical)
	}
	return resolved, nil
}
