package monitor

import (
	"testing"
	"time"

	"github.com/protein-tracker/stock-bot/internal/models"
)

func snap(entries map[string]bool) models.Snapshot {
	s := make(models.Snapshot, len(entries))
	for id, inStock := range entries {
		s[id] = models.Availability{InStock: inStock, ObservedAt: time.Now()}
	}
	return s
}

func base(entries map[string]bool) map[string]models.ProductState {
	b := make(map[string]models.ProductState, len(entries))
	for id, inStock := range entries {
		b[id] = models.ProductState{ProductID: id, InStock: inStock, UpdatedAt: time.Now()}
	}
	return b
}

func TestDiffColdStartProducesNoEvents(t *testing.T) {
	events, discovered := Diff(snap(map[string]bool{"p1": true, "p2": false}), nil)
	if len(events) != 0 {
		t.Fatalf("expected no events on cold start, got %d", len(events))
	}
	if len(discovered) != 2 {
		t.Fatalf("expected 2 discovered products, got %d", len(discovered))
	}
}

func TestDiffNoOpPollProducesNoEvents(t *testing.T) {
	baseline := base(map[string]bool{"p1": true, "p2": false})
	events, discovered := Diff(snap(map[string]bool{"p1": true, "p2": false}), baseline)
	if len(events) != 0 {
		t.Fatalf("expected no events for unchanged stock, got %+v", events)
	}
	if len(discovered) != 0 {
		t.Fatalf("expected no discoveries, got %v", discovered)
	}
}

func TestDiffDetectsBothDirections(t *testing.T) {
	baseline := base(map[string]bool{"p1": false, "p2": true})
	events, _ := Diff(snap(map[string]bool{"p1": true, "p2": false}), baseline)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Current || events[0].Previous {
		t.Fatalf("expected p1 false->true, got %+v", events[0])
	}
	if events[1].Current || !events[1].Previous {
		t.Fatalf("expected p2 true->false, got %+v", events[1])
	}
}

func TestDiffDeterministicOrdering(t *testing.T) {
	baseline := base(map[string]bool{"A": false, "B": false})
	events, _ := Diff(snap(map[string]bool{"B": true, "A": true}), baseline)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ProductID != "A" || events[1].ProductID != "B" {
		t.Fatalf("expected order [A, B], got [%s, %s]", events[0].ProductID, events[1].ProductID)
	}
}

func TestDiffIgnoresOmittedProducts(t *testing.T) {
	// p2 is known in stock but the upstream omitted it this cycle;
	// that must not read as "went out of stock"
	baseline := base(map[string]bool{"p1": false, "p2": true})
	events, _ := Diff(snap(map[string]bool{"p1": false}), baseline)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestDiffMixesDiscoveryAndTransitions(t *testing.T) {
	baseline := base(map[string]bool{"p1": false})
	events, discovered := Diff(snap(map[string]bool{"p1": true, "p9": true}), baseline)
	if len(events) != 1 || events[0].ProductID != "p1" {
		t.Fatalf("expected one event for p1, got %+v", events)
	}
	if len(discovered) != 1 || discovered[0] != "p9" {
		t.Fatalf("expected p9 discovered, got %v", discovered)
	}
}
