// Package conflictkit implements the conflict detection, classification and
// resolution engine between two independently-writable catalog stores. Side A
// is the commerce platform, side B the catalog/inventory engine; the engine
// decides whether their representations of a resource disagree, reconciles
// what it can automatically and exposes the remainder for an explicit
// decision. Fetching records and writing resolutions back to either platform
// is the surrounding pipeline's job, reached only through the ApplyNotifier
// and MetricsRecorder boundaries.
package conflictkit

import (
	"encoding/json"
	"time"
)

// ResourceType identifies the logical resource class a conflict is about.
type ResourceType string

const (
	ResourceProduct    ResourceType = "product"
	ResourceCollection ResourceType = "collection"
	ResourceInventory  ResourceType = "inventory"
)

// ConflictType classifies the disagreement.
type ConflictType string

const (
	ConflictDataMismatch ConflictType = "data_mismatch"
	ConflictInventory    ConflictType = "inventory_conflict"
)

// Severity is supplied by the caller at detection time; the caller knows the
// business context, the engine does not second-guess it.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Status is the conflict lifecycle state. Pending is the only non-terminal
// value; transitions are monotonic.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusIgnored  Status = "ignored"
)

// Side names one of the two catalog stores.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Strategy names an automatic resolution strategy.
type Strategy string

const (
	StrategyNone                Strategy = ""
	StrategyUseMostRecent       Strategy = "use_most_recent"
	StrategyManualMerge         Strategy = "manual_merge"
	StrategyUseHigherInventory  Strategy = "use_higher_inventory"
)

// FieldConflict records one disagreeing logical field. ResolvedValue is only
// meaningful when Resolved is true (a field can legitimately resolve to nil
// or false, so presence is tracked explicitly).
type FieldConflict struct {
	Name          string      `json:"name"`
	ValueA        interface{} `json:"value_a"`
	ValueB        interface{} `json:"value_b"`
	ResolvedValue interface{} `json:"resolved_value,omitempty"`
	Resolved      bool        `json:"resolved"`
}

// HistoryEntry is one line of the append-only audit log. Entries are written
// on creation, auto-resolution, manual resolution and ignore; they are never
// edited or removed.
type HistoryEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	ActorID   string                 `json:"actor_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// History actions.
const (
	ActionCreated        = "created"
	ActionAutoResolution = "auto_resolution"
	ActionResolved       = "resolved"
	ActionIgnored        = "ignored"
)

// Key is the tuple that scopes the at-most-one-pending invariant.
type Key struct {
	Domain       string
	ResourceType ResourceType
	ResourceIDA  string
	ResourceIDB  string
}

// Conflict is the unit of reconciliation: a durable record of two disagreeing
// representations of the same logical resource.
type Conflict struct {
	ID           string       `json:"id"`
	Domain       string       `json:"domain"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceIDA  string       `json:"resource_id_a"`
	ResourceIDB  string       `json:"resource_id_b"`
	ConflictType ConflictType `json:"conflict_type"`
	Severity     Severity     `json:"severity"`
	Status       Status       `json:"status"`

	// Fields is populated only for data_mismatch conflicts.
	Fields []FieldConflict `json:"fields,omitempty"`

	// Snapshots of both records as they looked at detection time. Needed by
	// use_most_recent and by apply instructions, and kept for audit.
	SideAData json.RawMessage `json:"side_a_data,omitempty"`
	SideBData json.RawMessage `json:"side_b_data,omitempty"`

	AutoResolutionAttempted  bool     `json:"auto_resolution_attempted"`
	AutoResolutionStrategy   Strategy `json:"auto_resolution_strategy,omitempty"`
	AutoResolutionSuccessful bool     `json:"auto_resolution_successful"`

	Resolution string     `json:"resolution,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`

	VersionHistory []HistoryEntry `json:"version_history"`

	CreatedAt time.Time `json:"created_at"`
}

// Key returns the pending-uniqueness tuple for this conflict.
func (c *Conflict) Key() Key {
	return Key{
		Domain:       c.Domain,
		ResourceType: c.ResourceType,
		ResourceIDA:  c.ResourceIDA,
		ResourceIDB:  c.ResourceIDB,
	}
}

// Terminal reports whether the conflict has reached a final state. Terminal
// conflicts are read-only history.
func (c *Conflict) Terminal() bool {
	return c.Status != StatusPending
}

// appendHistory writes one audit entry. VersionHistory only ever grows.
func (c *Conflict) appendHistory(now time.Time, action, actorID string, details map[string]interface{}) {
	c.VersionHistory = append(c.VersionHistory, HistoryEntry{
		Timestamp: now,
		Action:    action,
		ActorID:   actorID,
		Details:   details,
	})
}

// sideMap decodes one side's snapshot. A missing snapshot yields a nil map.
func (c *Conflict) sideMap(side Side) (map[string]interface{}, error) {
	raw := c.SideAData
	if side == SideB {
		raw = c.SideBData
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Clone returns a deep copy. Stores hand out clones so callers mutating a
// conflict between Update calls cannot corrupt shared state.
func (c *Conflict) Clone() *Conflict {
	cp := *c
	if c.Fields != nil {
		cp.Fields = append([]FieldConflict(nil), c.Fields...)
	}
	if c.VersionHistory != nil {
		cp.VersionHistory = append([]HistoryEntry(nil), c.VersionHistory...)
	}
	if c.SideAData != nil {
		cp.SideAData = append(json.RawMessage(nil), c.SideAData...)
	}
	if c.SideBData != nil {
		cp.SideBData = append(json.RawMessage(nil), c.SideBData...)
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
