package conflictkit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/logging"
)

// DetectionInput is the boundary contract from the sync pipeline. The caller
// has already fetched both records and decided conflict type and severity.
type DetectionInput struct {
	Domain       string                 `json:"domain" validate:"required"`
	ResourceType ResourceType           `json:"resource_type" validate:"required,oneof=product collection inventory"`
	ConflictType ConflictType           `json:"conflict_type" validate:"required,oneof=data_mismatch inventory_conflict"`
	Severity     Severity               `json:"severity" validate:"required,oneof=low medium high"`
	SideA        map[string]interface{} `json:"side_a" validate:"required"`
	SideB        map[string]interface{} `json:"side_b" validate:"required"`
}

// Detector turns detection inputs into persisted Conflict records and runs
// auto-resolution in the same step.
type Detector struct {
	store    ConflictStore
	auto     *AutoResolver
	metrics  MetricsRecorder
	logger   *logging.Logger
	validate *validator.Validate
	now      func() time.Time
}

// DetectorOption configures a Detector.
type DetectorOption interface{ applyDetector(*Detector) }

type detectorOptionFn func(*Detector)

func (f detectorOptionFn) applyDetector(d *Detector) { f(d) }

// WithAutoResolver attaches the engine run on every newly created conflict.
func WithAutoResolver(a *AutoResolver) DetectorOption {
	return detectorOptionFn(func(d *Detector) { d.auto = a })
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) DetectorOption {
	return detectorOptionFn(func(d *Detector) { d.metrics = m })
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) DetectorOption {
	return detectorOptionFn(func(d *Detector) { d.logger = l })
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) DetectorOption {
	return detectorOptionFn(func(d *Detector) { d.now = now })
}

// NewDetector constructs a Detector backed by the given store.
func NewDetector(store ConflictStore, opts ...DetectorOption) *Detector {
	d := &Detector{
		store:    store,
		metrics:  &NoOpMetricsRecorder{},
		logger:   logging.WithComponent(logging.Component("detector")),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt.applyDetector(d)
	}
	return d
}

// CreateConflict is the detection entry point. It derives the resource IDs,
// computes field disagreements for data mismatches, and atomically persists
// the record unless a pending conflict for the same resource pair already
// exists. In that case the existing record is returned unchanged with
// created=false and nothing is re-run (duplicate suppressed; not an error).
//
// On creation the auto-resolution engine runs immediately, as part of the
// same detection step.
func (d *Detector) CreateConflict(ctx context.Context, in DetectionInput) (*Conflict, bool, error) {
	if err := d.validate.Struct(in); err != nil {
		return nil, false, conflictErrors.NewValidationError(conflictErrors.OpDetect, err)
	}

	rm, ok := lookupResourceMap(in.ResourceType)
	if !ok {
		return nil, false, conflictErrors.NewValidationError(conflictErrors.OpDetect,
			&unknownResourceTypeError{rt: in.ResourceType})
	}

	idA := extractID(extractPath(in.SideA, rm.IDPathA))
	if idA == "" {
		return nil, false, conflictErrors.NewMissingIdentifier(conflictErrors.OpDetect, string(SideA))
	}
	idB := extractID(extractPath(in.SideB, rm.IDPathB))
	if idB == "" {
		return nil, false, conflictErrors.NewMissingIdentifier(conflictErrors.OpDetect, string(SideB))
	}

	now := d.now()
	candidate := &Conflict{
		ID:           uuid.NewString(),
		Domain:       in.Domain,
		ResourceType: in.ResourceType,
		ResourceIDA:  idA,
		ResourceIDB:  idB,
		ConflictType: in.ConflictType,
		Severity:     in.Severity,
		Status:       StatusPending,
		CreatedAt:    now,
	}

	if in.ConflictType == ConflictDataMismatch {
		candidate.Fields = Diff(in.ResourceType, in.SideA, in.SideB)
	}

	var err error
	if candidate.SideAData, err = json.Marshal(in.SideA); err != nil {
		return nil, false, conflictErrors.NewValidationError(conflictErrors.OpDetect, err)
	}
	if candidate.SideBData, err = json.Marshal(in.SideB); err != nil {
		return nil, false, conflictErrors.NewValidationError(conflictErrors.OpDetect, err)
	}

	candidate.appendHistory(now, ActionCreated, "sync-pipeline", map[string]interface{}{
		"conflict_type": string(in.ConflictType),
		"severity":      string(in.Severity),
		"field_count":   len(candidate.Fields),
	})

	got, created, err := d.store.FindOrCreate(ctx, candidate)
	if err != nil {
		return nil, false, err
	}

	if !created {
		// DUPLICATE_PENDING: informational, the caller gets the existing
		// record and no duplicate work happens.
		d.logger.DebugContext(ctx, "duplicate pending conflict suppressed",
			slog.String("conflict_id", got.ID),
			slog.String("domain", got.Domain),
			slog.String("resource_type", string(got.ResourceType)),
		)
		return got, false, nil
	}

	d.metrics.Record(got.Domain, got.ConflictType, OutcomeCreated)
	d.logger.InfoContext(ctx, "conflict created",
		slog.String("conflict_id", got.ID),
		slog.String("domain", got.Domain),
		slog.String("resource_type", string(got.ResourceType)),
		slog.String("conflict_type", string(got.ConflictType)),
		slog.String("severity", string(got.Severity)),
		slog.Int("field_count", len(got.Fields)),
	)

	if d.auto != nil {
		result, err := d.auto.Attempt(ctx, got)
		if err != nil {
			return got, true, err
		}
		if result.Successful && got.Status == StatusResolved {
			d.metrics.Record(got.Domain, got.ConflictType, OutcomeAutoResolved)
		}
	}

	return got, true, nil
}

type unknownResourceTypeError struct{ rt ResourceType }

func (e *unknownResourceTypeError) Error() string {
	return "no field map for resource type " + string(e.rt)
}
