package conflictkit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/fieldval"
	"github.com/c0deZ3R0/go-conflict-kit/logging"
)

// AttemptResult reports which strategy ran and whether it succeeded.
// Successful means the conflict fully resolved, or, for manual_merge, that
// at least one field resolved even though the record stays pending.
type AttemptResult struct {
	Strategy   Strategy `json:"strategy"`
	Successful bool     `json:"successful"`
}

// AutoResolver applies resolution heuristics by conflict type, severity and
// field type. It mutates the conflict in place, persists the mutation and
// appends an auto_resolution history entry whenever an attempt ran.
type AutoResolver struct {
	store    ConflictStore
	notifier ApplyNotifier
	logger   *logging.Logger
	now      func() time.Time
}

// AutoResolverOption configures an AutoResolver.
type AutoResolverOption interface{ applyAuto(*AutoResolver) }

type autoOptionFn func(*AutoResolver)

func (f autoOptionFn) applyAuto(a *AutoResolver) { f(a) }

// WithApplyNotifier sets the receiver of apply instructions.
func WithApplyNotifier(n ApplyNotifier) AutoResolverOption {
	return autoOptionFn(func(a *AutoResolver) { a.notifier = n })
}

// WithAutoLogger sets the logger.
func WithAutoLogger(l *logging.Logger) AutoResolverOption {
	return autoOptionFn(func(a *AutoResolver) { a.logger = l })
}

// WithAutoClock overrides the time source (tests).
func WithAutoClock(now func() time.Time) AutoResolverOption {
	return autoOptionFn(func(a *AutoResolver) { a.now = now })
}

// NewAutoResolver constructs the engine over the given store.
func NewAutoResolver(store ConflictStore, opts ...AutoResolverOption) *AutoResolver {
	a := &AutoResolver{
		store:    store,
		notifier: &NoOpApplyNotifier{},
		logger:   logging.WithComponent(logging.Component("auto-resolver")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt.applyAuto(a)
	}
	return a
}

// Attempt runs the strategy decision table:
//
//	data_mismatch / low     -> use_most_recent (newer side's whole record wins)
//	data_mismatch / medium  -> manual_merge (per-field rules, stays pending)
//	data_mismatch / high    -> no strategy, always manual
//	inventory_conflict / *  -> use_higher_inventory
//
// Re-attempting a terminal conflict is an ordering bug and fails hard.
func (a *AutoResolver) Attempt(ctx context.Context, c *Conflict) (AttemptResult, error) {
	if c.Terminal() {
		return AttemptResult{}, conflictErrors.NewAlreadyFinalized(conflictErrors.OpAutoResolve, c.ID, string(c.Status))
	}

	var result AttemptResult
	var instructions []ApplyInstruction
	var err error

	switch {
	case c.ConflictType == ConflictInventory:
		result, instructions, err = a.useHigherInventory(c)
	case c.ConflictType == ConflictDataMismatch && c.Severity == SeverityLow:
		result, instructions, err = a.useMostRecent(c)
	case c.ConflictType == ConflictDataMismatch && c.Severity == SeverityMedium:
		result = a.manualMerge(c)
	default:
		// High severity data mismatches never auto-resolve
		// (UNRESOLVABLE_STRATEGY: not an error to the caller).
		result = AttemptResult{Strategy: StrategyNone, Successful: false}
		a.finishAttempt(c, result, map[string]interface{}{"outcome": "manual_required"})
	}
	if err != nil {
		return AttemptResult{}, err
	}

	if err := a.store.Update(ctx, c); err != nil {
		return AttemptResult{}, err
	}

	for _, ins := range instructions {
		if err := a.notifier.Apply(ctx, ins); err != nil {
			return result, conflictErrors.WrapOpComponent(err, conflictErrors.OpApply, "auto-resolver")
		}
	}

	a.logger.InfoContext(ctx, "auto-resolution attempted",
		slog.String("conflict_id", c.ID),
		slog.String("strategy", string(result.Strategy)),
		slog.Bool("successful", result.Successful),
		slog.String("status", string(c.Status)),
	)

	return result, nil
}

// finishAttempt records the attempt outcome on the conflict and appends the
// audit entry.
func (a *AutoResolver) finishAttempt(c *Conflict, result AttemptResult, details map[string]interface{}) {
	c.AutoResolutionAttempted = true
	c.AutoResolutionStrategy = result.Strategy
	c.AutoResolutionSuccessful = result.Successful

	if details == nil {
		details = map[string]interface{}{}
	}
	details["strategy"] = string(result.Strategy)
	details["successful"] = result.Successful
	c.appendHistory(a.now(), ActionAutoResolution, "auto-resolver", details)
}

// markResolved finishes a fully successful strategy.
func (a *AutoResolver) markResolved(c *Conflict, resolution string) {
	now := a.now()
	c.Status = StatusResolved
	c.Resolution = resolution
	c.ResolvedBy = "auto-resolver"
	c.ResolvedAt = &now
}

// useMostRecent picks the side with the newer update timestamp as
// authoritative for the entire record. Absent or unparseable timestamps fail
// the attempt and leave the conflict pending.
func (a *AutoResolver) useMostRecent(c *Conflict) (AttemptResult, []ApplyInstruction, error) {
	rm, _ := lookupResourceMap(c.ResourceType)

	sideA, errA := c.sideMap(SideA)
	sideB, errB := c.sideMap(SideB)
	if errA != nil || errB != nil || sideA == nil || sideB == nil {
		result := AttemptResult{Strategy: StrategyUseMostRecent, Successful: false}
		a.finishAttempt(c, result, map[string]interface{}{"outcome": "missing_snapshots"})
		return result, nil, nil
	}

	ta, okA := sniffTime(extractPath(sideA, rm.UpdatedPathA))
	tb, okB := sniffTime(extractPath(sideB, rm.UpdatedPathB))
	if !okA || !okB {
		result := AttemptResult{Strategy: StrategyUseMostRecent, Successful: false}
		a.finishAttempt(c, result, map[string]interface{}{"outcome": "unparseable_timestamps"})
		return result, nil, nil
	}

	winner := SideA
	winnerData := sideA
	if tb.After(ta) {
		winner = SideB
		winnerData = sideB
	}
	loser := winner.Opposite()

	result := AttemptResult{Strategy: StrategyUseMostRecent, Successful: true}
	a.markResolved(c, "use_"+string(winner))
	a.finishAttempt(c, result, map[string]interface{}{
		"winner":    string(winner),
		"updated_a": ta.Format(time.RFC3339),
		"updated_b": tb.Format(time.RFC3339),
	})

	ins := ApplyInstruction{
		ResourceType: c.ResourceType,
		TargetSide:   loser,
		ResourceID:   c.resourceIDOn(loser),
		Value:        winnerData,
	}
	return result, []ApplyInstruction{ins}, nil
}

// manualMerge applies the per-type auto-rule to every unresolved field. The
// conflict always stays pending (medium severity requires an explicit
// terminal action), but resolved fields reduce the manual burden, and the
// attempt counts as successful when at least one field resolved.
func (a *AutoResolver) manualMerge(c *Conflict) AttemptResult {
	resolved := 0
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Resolved {
			continue
		}
		if v, ok := mergeField(f.Name, fieldval.Sniff(f.ValueA), fieldval.Sniff(f.ValueB)); ok {
			f.ResolvedValue = v
			f.Resolved = true
			resolved++
		}
	}

	result := AttemptResult{Strategy: StrategyManualMerge, Successful: resolved > 0}
	a.finishAttempt(c, result, map[string]interface{}{
		"resolved_fields": resolved,
		"total_fields":    len(c.Fields),
	})
	return result
}

// useHigherInventory resolves an inventory conflict to the larger quantity,
// applied for every known stock location.
func (a *AutoResolver) useHigherInventory(c *Conflict) (AttemptResult, []ApplyInstruction, error) {
	rm, _ := lookupResourceMap(c.ResourceType)

	sideA, errA := c.sideMap(SideA)
	sideB, errB := c.sideMap(SideB)
	if errA != nil || errB != nil {
		result := AttemptResult{Strategy: StrategyUseHigherInventory, Successful: false}
		a.finishAttempt(c, result, map[string]interface{}{"outcome": "missing_snapshots"})
		return result, nil, nil
	}

	qa, okA := sniffNumber(extractPath(sideA, rm.QuantityPathA))
	qb, okB := sniffNumber(extractPath(sideB, rm.QuantityPathB))
	if !okA && !okB {
		result := AttemptResult{Strategy: StrategyUseHigherInventory, Successful: false}
		a.finishAttempt(c, result, map[string]interface{}{"outcome": "no_quantities"})
		return result, nil, nil
	}

	quantity := qa
	loser := SideB
	if !okA || (okB && qb > qa) {
		quantity = qb
		loser = SideA
	}

	locations := unionLocations(
		extractPath(sideA, rm.LocationsPathA),
		extractPath(sideB, rm.LocationsPathB),
	)

	result := AttemptResult{Strategy: StrategyUseHigherInventory, Successful: true}
	a.markResolved(c, string(StrategyUseHigherInventory))
	a.finishAttempt(c, result, map[string]interface{}{
		"quantity_a":        qa,
		"quantity_b":        qb,
		"resolved_quantity": quantity,
		"locations":         locations,
	})

	var instructions []ApplyInstruction
	if len(locations) == 0 {
		instructions = append(instructions, ApplyInstruction{
			ResourceType: c.ResourceType,
			TargetSide:   loser,
			ResourceID:   c.resourceIDOn(loser),
			Value:        map[string]interface{}{"quantity": quantity},
		})
	}
	for _, loc := range locations {
		instructions = append(instructions, ApplyInstruction{
			ResourceType: c.ResourceType,
			TargetSide:   loser,
			ResourceID:   c.resourceIDOn(loser),
			Value: map[string]interface{}{
				"quantity":    quantity,
				"location_id": loc,
			},
		})
	}
	return result, instructions, nil
}

// resourceIDOn returns the conflict's resource identifier on the given side.
func (c *Conflict) resourceIDOn(side Side) string {
	if side == SideA {
		return c.ResourceIDA
	}
	return c.ResourceIDB
}

// temporalName reports whether a logical field name denotes a timestamp:
// it contains "date" or "time", or carries the At suffix (updatedAt etc.).
func temporalName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") ||
		strings.Contains(lower, "time") ||
		strings.HasSuffix(name, "At") ||
		strings.HasSuffix(lower, "_at")
}

// mergeField is the per-type auto-rule used under manual_merge. It returns
// the resolved value and whether the pair was mergeable at all.
func mergeField(name string, va, vb fieldval.Value) (interface{}, bool) {
	switch {
	case temporalName(name) && va.Kind() == fieldval.KindTime && vb.Kind() == fieldval.KindTime:
		later := va.TimeVal()
		if vb.TimeVal().After(later) {
			later = vb.TimeVal()
		}
		return later.Format(time.RFC3339), true

	case va.Kind() == fieldval.KindNumber && vb.Kind() == fieldval.KindNumber:
		return (va.NumberVal() + vb.NumberVal()) / 2, true

	case va.Kind() == fieldval.KindBool && vb.Kind() == fieldval.KindBool:
		return va.BoolVal() || vb.BoolVal(), true

	case va.Kind() == fieldval.KindArray && vb.Kind() == fieldval.KindArray:
		return unionArrays(va.ArrayVal(), vb.ArrayVal()), true

	default:
		return nil, false
	}
}

// unionArrays de-duplicates the concatenation of both arrays, preserving
// first-seen order: side A's elements first, then side B's.
func unionArrays(a, b []fieldval.Value) []interface{} {
	var seen []fieldval.Value
	var out []interface{}
	for _, v := range append(append([]fieldval.Value(nil), a...), b...) {
		dup := false
		for _, s := range seen {
			if fieldval.Equal(s, v) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, v)
			out = append(out, v.Native())
		}
	}
	return out
}

// sniffTime extracts a timestamp from a raw value if one is present.
func sniffTime(raw interface{}) (time.Time, bool) {
	v := fieldval.Sniff(raw)
	if v.Kind() != fieldval.KindTime {
		return time.Time{}, false
	}
	return v.TimeVal(), true
}

// sniffNumber extracts a numeric value from a raw value if one is present.
func sniffNumber(raw interface{}) (float64, bool) {
	v := fieldval.Sniff(raw)
	if v.Kind() != fieldval.KindNumber {
		return 0, false
	}
	return v.NumberVal(), true
}

// unionLocations merges the location ID lists from both sides, deduplicated,
// side A order first.
func unionLocations(rawA, rawB interface{}) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range []interface{}{rawA, rawB} {
		list, ok := raw.([]interface{})
		if !ok {
			continue
		}
		for _, el := range list {
			id := extractID(el)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
