package conflictkit

import "context"

// ApplyInstruction tells the external write-back component which value to
// push to which side. The engine only emits instructions; it never performs
// the remote write itself.
type ApplyInstruction struct {
	ResourceType ResourceType `json:"resource_type"`
	TargetSide   Side         `json:"target_side"`
	ResourceID   string       `json:"resource_id"`
	Value        interface{}  `json:"value"`
}

// ApplyNotifier is the receiving side of apply instructions. Whether the
// write-back executes synchronously or is queued is the pipeline's decision.
type ApplyNotifier interface {
	Apply(ctx context.Context, instruction ApplyInstruction) error
}

// NoOpApplyNotifier discards instructions. Useful for tests and for
// deployments that only want conflict reporting.
type NoOpApplyNotifier struct{}

func (n *NoOpApplyNotifier) Apply(ctx context.Context, instruction ApplyInstruction) error {
	return nil
}
