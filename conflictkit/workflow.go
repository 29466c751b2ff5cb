package conflictkit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/logging"
)

// Resolution choices for manual resolution.
const (
	ResolutionUseA  = "use_A"
	ResolutionUseB  = "use_B"
	ResolutionMerge = "merge"
)

// Resolution is the manual decision for a pending conflict: take one side's
// record wholesale, or supply explicit merged values per field.
type Resolution struct {
	Choice       string                 `json:"choice"`
	MergedFields map[string]interface{} `json:"merged_fields,omitempty"`
}

// Workflow exposes the manual resolve/ignore operations and validates state
// transitions. Transitions only fire from pending; anything else is a
// programming or ordering bug upstream and fails hard. Resolving one conflict
// never touches another; at most one pending record exists per resource pair
// by construction.
type Workflow struct {
	store    ConflictStore
	notifier ApplyNotifier
	metrics  MetricsRecorder
	logger   *logging.Logger
	now      func() time.Time
}

// WorkflowOption configures a Workflow.
type WorkflowOption interface{ applyWorkflow(*Workflow) }

type workflowOptionFn func(*Workflow)

func (f workflowOptionFn) applyWorkflow(w *Workflow) { f(w) }

// WithWorkflowNotifier sets the receiver of apply instructions.
func WithWorkflowNotifier(n ApplyNotifier) WorkflowOption {
	return workflowOptionFn(func(w *Workflow) { w.notifier = n })
}

// WithWorkflowMetrics sets the metrics recorder.
func WithWorkflowMetrics(m MetricsRecorder) WorkflowOption {
	return workflowOptionFn(func(w *Workflow) { w.metrics = m })
}

// WithWorkflowLogger sets the logger.
func WithWorkflowLogger(l *logging.Logger) WorkflowOption {
	return workflowOptionFn(func(w *Workflow) { w.logger = l })
}

// WithWorkflowClock overrides the time source (tests).
func WithWorkflowClock(now func() time.Time) WorkflowOption {
	return workflowOptionFn(func(w *Workflow) { w.now = now })
}

// NewWorkflow constructs a Workflow over the given store.
func NewWorkflow(store ConflictStore, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		store:    store,
		notifier: &NoOpApplyNotifier{},
		metrics:  &NoOpMetricsRecorder{},
		logger:   logging.WithComponent(logging.Component("workflow")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt.applyWorkflow(w)
	}
	return w
}

// Resolve finalizes a pending conflict with the given decision. For use_A and
// use_B exactly one apply instruction is emitted, carrying the winning side's
// full record to the losing side. For merge, the supplied per-field values
// are recorded and an instruction per side carries the merged field map (both
// stores need the merged result).
func (w *Workflow) Resolve(ctx context.Context, c *Conflict, res Resolution, actorID, notes string) error {
	if c.Terminal() {
		return conflictErrors.NewAlreadyFinalized(conflictErrors.OpResolve, c.ID, string(c.Status))
	}

	var instructions []ApplyInstruction

	switch res.Choice {
	case ResolutionUseA, ResolutionUseB:
		winner := SideA
		if res.Choice == ResolutionUseB {
			winner = SideB
		}
		loser := winner.Opposite()

		winnerData, err := c.sideMap(winner)
		if err != nil {
			return conflictErrors.NewValidationError(conflictErrors.OpResolve, err)
		}
		instructions = append(instructions, ApplyInstruction{
			ResourceType: c.ResourceType,
			TargetSide:   loser,
			ResourceID:   c.resourceIDOn(loser),
			Value:        winnerData,
		})

	case ResolutionMerge:
		if len(res.MergedFields) == 0 {
			return conflictErrors.NewValidationError(conflictErrors.OpResolve,
				fmt.Errorf("merge resolution requires at least one merged field"))
		}
		for i := range c.Fields {
			f := &c.Fields[i]
			if v, ok := res.MergedFields[f.Name]; ok {
				f.ResolvedValue = v
				f.Resolved = true
			}
		}
		for _, side := range []Side{SideA, SideB} {
			instructions = append(instructions, ApplyInstruction{
				ResourceType: c.ResourceType,
				TargetSide:   side,
				ResourceID:   c.resourceIDOn(side),
				Value:        res.MergedFields,
			})
		}

	default:
		return conflictErrors.NewValidationError(conflictErrors.OpResolve,
			fmt.Errorf("unknown resolution choice %q", res.Choice))
	}

	now := w.now()
	c.Status = StatusResolved
	c.Resolution = res.Choice
	c.ResolvedBy = actorID
	c.ResolvedAt = &now
	c.Notes = notes
	c.appendHistory(now, ActionResolved, actorID, map[string]interface{}{
		"choice": res.Choice,
		"notes":  notes,
	})

	if err := w.store.Update(ctx, c); err != nil {
		return err
	}

	for _, ins := range instructions {
		if err := w.notifier.Apply(ctx, ins); err != nil {
			return conflictErrors.WrapOpComponent(err, conflictErrors.OpApply, "workflow")
		}
	}

	w.metrics.Record(c.Domain, c.ConflictType, OutcomeResolved)
	w.logger.InfoContext(ctx, "conflict resolved",
		slog.String("conflict_id", c.ID),
		slog.String("choice", res.Choice),
		slog.String("actor_id", actorID),
	)
	return nil
}

// Ignore finalizes a pending conflict without picking a value. No apply
// instruction is emitted; the record remains as audit history.
func (w *Workflow) Ignore(ctx context.Context, c *Conflict, actorID, notes string) error {
	if c.Terminal() {
		return conflictErrors.NewAlreadyFinalized(conflictErrors.OpIgnore, c.ID, string(c.Status))
	}

	now := w.now()
	c.Status = StatusIgnored
	c.ResolvedBy = actorID
	c.ResolvedAt = &now
	c.Notes = notes
	c.appendHistory(now, ActionIgnored, actorID, map[string]interface{}{
		"notes": notes,
	})

	if err := w.store.Update(ctx, c); err != nil {
		return err
	}

	w.metrics.Record(c.Domain, c.ConflictType, OutcomeIgnored)
	w.logger.InfoContext(ctx, "conflict ignored",
		slog.String("conflict_id", c.ID),
		slog.String("actor_id", actorID),
	)
	return nil
}
