package monitor

import (
	"sort"

	"github.com/protein-tracker/stock-bot/internal/models"
)

// Diff compares a fresh snapshot against the persisted baseline and
// returns the availability transitions, ordered by product id ascending.
//
// Products seen for the first time (no baseline entry) never produce an
// event; they are returned in discovered so the caller can seed the
// baseline. Products absent from the snapshot are left untouched: an
// upstream omission must not read as "went out of stock".
func Diff(snapshot models.Snapshot, baseline map[string]models.ProductState) (events []models.TransitionEvent, discovered []string) {
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		observed := snapshot[id]

		prev, known := baseline[id]
		if !known {
			discovered = append(discovered, id)
			continue
		}

		if observed.InStock == prev.InStock {
			continue
		}

		events = append(events, models.TransitionEvent{
			ProductID:  id,
			Previous:   prev.InStock,
			Current:    observed.InStock,
			OccurredAt: observed.ObservedAt,
		})
	}

	return events, discovered
}
