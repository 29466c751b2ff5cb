package conflictkit_test

import (
	"context"
	"testing"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/storage/memory"
)

func TestCreateConflict_IdempotentForPendingPair(t *testing.T) {
	store := memory.New()
	metrics := newCaptureMetrics()
	detector := conflictkit.NewDetector(store, conflictkit.WithMetrics(metrics))

	in := productInput("shop-1", conflictkit.SeverityHigh,
		productA(map[string]interface{}{"title": "Aviator Classic"}),
		productB(map[string]interface{}{"name": "Aviator Pro"}),
	)

	first, created, err := detector.CreateConflict(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected first detection to create")
	}

	second, created, err := detector.CreateConflict(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected second detection to be suppressed")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same conflict id, got %s and %s", first.ID, second.ID)
	}

	// No duplicate work: history still has exactly one created entry.
	createdEntries := 0
	for _, h := range second.VersionHistory {
		if h.Action == conflictkit.ActionCreated {
			createdEntries++
		}
	}
	if createdEntries != 1 {
		t.Fatalf("expected exactly one created history entry, got %d", createdEntries)
	}

	if got := metrics.count("shop-1", conflictkit.ConflictDataMismatch, conflictkit.OutcomeCreated); got != 1 {
		t.Fatalf("expected one created metric, got %d", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single stored conflict, got %d", store.Len())
	}
}

func TestCreateConflict_MissingIdentifier(t *testing.T) {
	store := memory.New()
	detector := conflictkit.NewDetector(store)

	sideA := productA(nil)
	delete(sideA, "id")
	in := productInput("shop-1", conflictkit.SeverityLow, sideA, productB(nil))

	_, _, err := detector.CreateConflict(context.Background(), in)
	if !conflictErrors.IsMissingIdentifier(err) {
		t.Fatalf("expected MissingIdentifier, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("no record may be created for missing identifiers")
	}

	sideB := productB(nil)
	delete(sideB, "external_id")
	in = productInput("shop-1", conflictkit.SeverityLow, productA(nil), sideB)

	_, _, err = detector.CreateConflict(context.Background(), in)
	if !conflictErrors.IsMissingIdentifier(err) {
		t.Fatalf("expected MissingIdentifier for side B, got %v", err)
	}
}

func TestCreateConflict_ValidatesInput(t *testing.T) {
	detector := conflictkit.NewDetector(memory.New())

	in := conflictkit.DetectionInput{
		Domain:       "shop-1",
		ResourceType: "spaceship",
		ConflictType: conflictkit.ConflictDataMismatch,
		Severity:     conflictkit.SeverityLow,
		SideA:        map[string]interface{}{"id": "1"},
		SideB:        map[string]interface{}{"external_id": "1"},
	}

	_, _, err := detector.CreateConflict(context.Background(), in)
	if !conflictErrors.IsKind(err, conflictErrors.KindValidationFailure) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestCreateConflict_FieldsOnlyForDataMismatch(t *testing.T) {
	store := memory.New()
	detector := conflictkit.NewDetector(store)

	in := conflictkit.DetectionInput{
		Domain:       "shop-1",
		ResourceType: conflictkit.ResourceInventory,
		ConflictType: conflictkit.ConflictInventory,
		Severity:     conflictkit.SeverityMedium,
		SideA:        map[string]interface{}{"inventory_item_id": "inv-1", "available": 12.0},
		SideB:        map[string]interface{}{"id": "stock-1", "quantity": 5.0},
	}

	c, created, err := detector.CreateConflict(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("unexpected result: created=%v err=%v", created, err)
	}
	if len(c.Fields) != 0 {
		t.Fatalf("inventory conflicts must not carry field conflicts, got %v", c.Fields)
	}
}

func TestCreateConflict_RunsAutoResolution(t *testing.T) {
	store := memory.New()
	metrics := newCaptureMetrics()
	auto := conflictkit.NewAutoResolver(store)
	detector := conflictkit.NewDetector(store,
		conflictkit.WithAutoResolver(auto),
		conflictkit.WithMetrics(metrics),
	)

	in := conflictkit.DetectionInput{
		Domain:       "shop-1",
		ResourceType: conflictkit.ResourceInventory,
		ConflictType: conflictkit.ConflictInventory,
		Severity:     conflictkit.SeverityLow,
		SideA:        map[string]interface{}{"inventory_item_id": "inv-1", "available": 12.0},
		SideB:        map[string]interface{}{"id": "stock-1", "quantity": 5.0},
	}

	c, _, err := detector.CreateConflict(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.AutoResolutionAttempted {
		t.Fatalf("auto-resolution must run in the detection step")
	}
	if c.Status != conflictkit.StatusResolved {
		t.Fatalf("expected resolved, got %s", c.Status)
	}
	if got := metrics.count("shop-1", conflictkit.ConflictInventory, conflictkit.OutcomeAutoResolved); got != 1 {
		t.Fatalf("expected one auto_resolved metric, got %d", got)
	}
}
