package conflictkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/storage/memory"
)

// detect creates a conflict without running auto-resolution so tests control
// the attempt explicitly.
func detect(t *testing.T, store *memory.Store, in conflictkit.DetectionInput) *conflictkit.Conflict {
	t.Helper()
	c, created, err := conflictkit.NewDetector(store).CreateConflict(context.Background(), in)
	if err != nil {
		t.Fatalf("detection failed: %v", err)
	}
	if !created {
		t.Fatalf("expected creation")
	}
	return c
}

func TestAttempt_HighSeverityRequiresManualAction(t *testing.T) {
	store := memory.New()
	notifier := &captureNotifier{}
	auto := conflictkit.NewAutoResolver(store, conflictkit.WithApplyNotifier(notifier))

	c := detect(t, store, productInput("shop-1", conflictkit.SeverityHigh,
		productA(map[string]interface{}{"title": "Aviator Classic"}),
		productB(map[string]interface{}{"name": "Aviator Pro"}),
	))

	result, err := auto.Attempt(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Successful || result.Strategy != conflictkit.StrategyNone {
		t.Fatalf("high severity must never auto-resolve, got %+v", result)
	}
	if c.Status != conflictkit.StatusPending {
		t.Fatalf("conflict must stay pending, got %s", c.Status)
	}
	if !c.AutoResolutionAttempted {
		t.Fatalf("attempt must be recorded")
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("no apply instructions expected, got %v", notifier.all())
	}

	// The attempt is still auditable.
	last := c.VersionHistory[len(c.VersionHistory)-1]
	if last.Action != conflictkit.ActionAutoResolution {
		t.Fatalf("expected auto_resolution history entry, got %s", last.Action)
	}
}

func TestAttempt_UseMostRecentNewerSideWins(t *testing.T) {
	store := memory.New()
	notifier := &captureNotifier{}
	auto := conflictkit.NewAutoResolver(store, conflictkit.WithApplyNotifier(notifier))

	c := detect(t, store, productInput("shop-1", conflictkit.SeverityLow,
		productA(map[string]interface{}{
			"title":      "Aviator Classic v2",
			"updated_at": "2024-03-02T10:00:00Z",
		}),
		productB(map[string]interface{}{
			"name":       "Aviator Classic",
			"updated_at": "2024-03-01T10:00:00Z",
		}),
	))

	result, err := auto.Attempt(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Successful || result.Strategy != conflictkit.StrategyUseMostRecent {
		t.Fatalf("expected successful use_most_recent, got %+v", result)
	}
	if c.Status != conflictkit.StatusResolved {
		t.Fatalf("expected resolved, got %s", c.Status)
	}
	if c.Resolution != "use_A" {
		t.Fatalf("side A is newer, expected use_A, got %s", c.Resolution)
	}
	if c.ResolvedBy != "auto-resolver" || c.ResolvedAt == nil {
		t.Fatalf("resolution attribution missing: by=%q at=%v", c.ResolvedBy, c.ResolvedAt)
	}

	ins := notifier.all()
	if len(ins) != 1 {
		t.Fatalf("expected exactly one apply instruction, got %d", len(ins))
	}
	if ins[0].TargetSide != conflictkit.SideB {
		t.Fatalf("instruction must target the losing side, got %s", ins[0].TargetSide)
	}
	if ins[0].ResourceID != "sku-1001" {
		t.Fatalf("instruction must carry side B's resource id, got %s", ins[0].ResourceID)
	}
	winner, ok := ins[0].Value.(map[string]interface{})
	if !ok || winner["title"] != "Aviator Classic v2" {
		t.Fatalf("instruction must carry the winner's full record, got %v", ins[0].Value)
	}

	// Store holds the resolved record.
	stored, err := store.Get(context.Background(), "shop-1", c.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != conflictkit.StatusResolved {
		t.Fatalf("resolution was not persisted")
	}
}

func TestAttempt_UseMostRecentUnparseableTimestampsStaysPending(t *testing.T) {
	store := memory.New()
	auto := conflictkit.NewAutoResolver(store)

	c := detect(t, store, productInput("shop-1", conflictkit.SeverityLow,
		productA(map[string]interface{}{"title": "A", "updated_at": "not-a-date"}),
		productB(map[string]interface{}{"name": "B"}),
	))

	result, err := auto.Attempt(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Successful {
		t.Fatalf("unparseable timestamps must fail the attempt")
	}
	if c.Status != conflictkit.StatusPending {
		t.Fatalf("conflict must stay pending, got %s", c.Status)
	}
	if !c.AutoResolutionAttempted || c.AutoResolutionSuccessful {
		t.Fatalf("attempt flags wrong: attempted=%v successful=%v",
			c.AutoResolutionAttempted, c.AutoResolutionSuccessful)
	}
}

func TestAttempt_ManualMergeFieldRules(t *testing.T) {
	store := memory.New()
	auto := conflictkit.NewAutoResolver(store)

	c := detect(t, store, productInput("shop-1", conflictkit.SeverityMedium,
		productA(map[string]interface{}{
			"title":        "Aviator Classic",
			"tags":         []interface{}{"summer", "sale"},
			"published_at": "2024-01-01T00:00:00Z",
			"variants": []interface{}{
				map[string]interface{}{"price": "80.00", "sku": "AV-CL-01"},
			},
		}),
		productB(map[string]interface{}{
			"name":         "Aviator Pro",
			"tags":         []interface{}{"sale", "eyewear"},
			"published_at": "2024-02-01T00:00:00Z",
			"price":        100.0,
		}),
	))

	result, err := auto.Attempt(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Strategy != conflictkit.StrategyManualMerge || !result.Successful {
		t.Fatalf("expected successful manual_merge, got %+v", result)
	}
	if c.Status != conflictkit.StatusPending {
		t.Fatalf("medium severity always stays pending, got %s", c.Status)
	}

	byName := map[string]conflictkit.FieldConflict{}
	for _, f := range c.Fields {
		byName[f.Name] = f
	}

	// Arrays merge to the deduplicated union, side A order first.
	tags := byName["tags"]
	if !tags.Resolved {
		t.Fatalf("tags must auto-merge")
	}
	merged, ok := tags.ResolvedValue.([]interface{})
	if !ok || len(merged) != 3 ||
		merged[0] != "summer" || merged[1] != "sale" || merged[2] != "eyewear" {
		t.Fatalf("expected [summer sale eyewear], got %v", tags.ResolvedValue)
	}

	// Numbers merge to the mean.
	price := byName["price"]
	if !price.Resolved {
		t.Fatalf("price must auto-merge")
	}
	if got, ok := price.ResolvedValue.(float64); !ok || got != 90.0 {
		t.Fatalf("expected mean 90, got %v", price.ResolvedValue)
	}

	// Temporal fields merge to the later date.
	published := byName["publishedAt"]
	if !published.Resolved {
		t.Fatalf("publishedAt must auto-merge")
	}
	if published.ResolvedValue != "2024-02-01T00:00:00Z" {
		t.Fatalf("expected later date, got %v", published.ResolvedValue)
	}

	// Plain strings have no auto-rule.
	title := byName["title"]
	if title.Resolved {
		t.Fatalf("title must stay unresolved for manual review")
	}
}

func TestAttempt_UseHigherInventory(t *testing.T) {
	store := memory.New()
	notifier := &captureNotifier{}
	auto := conflictkit.NewAutoResolver(store, conflictkit.WithApplyNotifier(notifier))

	c := detect(t, store, conflictkit.DetectionInput{
		Domain:       "shop-1",
		ResourceType: conflictkit.ResourceInventory,
		ConflictType: conflictkit.ConflictInventory,
		Severity:     conflictkit.SeverityHigh,
		SideA: map[string]interface{}{
			"inventory_item_id": "inv-1",
			"available":         12.0,
			"location_ids":      []interface{}{"loc-1", "loc-2"},
		},
		SideB: map[string]interface{}{
			"id":           "stock-1",
			"quantity":     5.0,
			"location_ids": []interface{}{"loc-2"},
		},
	})

	result, err := auto.Attempt(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Successful || result.Strategy != conflictkit.StrategyUseHigherInventory {
		t.Fatalf("expected successful use_higher_inventory, got %+v", result)
	}
	if c.Status != conflictkit.StatusResolved {
		t.Fatalf("expected resolved, got %s", c.Status)
	}

	ins := notifier.all()
	if len(ins) != 2 {
		t.Fatalf("expected one instruction per location, got %d", len(ins))
	}
	for i, locID := range []string{"loc-1", "loc-2"} {
		if ins[i].TargetSide != conflictkit.SideB {
			t.Fatalf("instruction %d must target the losing side, got %s", i, ins[i].TargetSide)
		}
		if ins[i].ResourceID != "stock-1" {
			t.Fatalf("instruction %d resource id: got %s", i, ins[i].ResourceID)
		}
		value, ok := ins[i].Value.(map[string]interface{})
		if !ok {
			t.Fatalf("instruction %d value: %v", i, ins[i].Value)
		}
		if value["quantity"] != 12.0 {
			t.Fatalf("instruction %d must carry the higher quantity, got %v", i, value["quantity"])
		}
		if value["location_id"] != locID {
			t.Fatalf("instruction %d location: expected %s, got %v", i, locID, value["location_id"])
		}
	}
}

func TestAttempt_TerminalConflictFailsHard(t *testing.T) {
	store := memory.New()
	clock := fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	auto := conflictkit.NewAutoResolver(store, conflictkit.WithAutoClock(clock))

	c := detect(t, store, conflictkit.DetectionInput{
		Domain:       "shop-1",
		ResourceType: conflictkit.ResourceInventory,
		ConflictType: conflictkit.ConflictInventory,
		Severity:     conflictkit.SeverityLow,
		SideA:        map[string]interface{}{"inventory_item_id": "inv-1", "available": 12.0},
		SideB:        map[string]interface{}{"id": "stock-1", "quantity": 5.0},
	})

	if _, err := auto.Attempt(context.Background(), c); err != nil {
		t.Fatalf("first attempt failed: %v", err)
	}
	_, err := auto.Attempt(context.Background(), c)
	if !conflictErrors.IsAlreadyFinalized(err) {
		t.Fatalf("expected AlreadyFinalized, got %v", err)
	}
}
