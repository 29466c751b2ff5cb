package conflictkit_test

import (
	"context"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
)

// captureNotifier records every apply instruction it receives.
type captureNotifier struct {
	mu           sync.Mutex
	instructions []conflictkit.ApplyInstruction
	err          error
}

func (n *captureNotifier) Apply(ctx context.Context, ins conflictkit.ApplyInstruction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.instructions = append(n.instructions, ins)
	return nil
}

func (n *captureNotifier) all() []conflictkit.ApplyInstruction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]conflictkit.ApplyInstruction(nil), n.instructions...)
}

// captureMetrics counts outcomes per (domain, type, outcome).
type captureMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{counts: map[string]int{}}
}

func (m *captureMetrics) Record(domain string, ct conflictkit.ConflictType, outcome conflictkit.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[domain+"/"+string(ct)+"/"+string(outcome)]++
}

func (m *captureMetrics) count(domain string, ct conflictkit.ConflictType, outcome conflictkit.Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[domain+"/"+string(ct)+"/"+string(outcome)]
}

// fixedClock returns a deterministic time source.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// productInput builds a data_mismatch detection input for two product records.
func productInput(domain string, severity conflictkit.Severity, sideA, sideB map[string]interface{}) conflictkit.DetectionInput {
	return conflictkit.DetectionInput{
		Domain:       domain,
		ResourceType: conflictkit.ResourceProduct,
		ConflictType: conflictkit.ConflictDataMismatch,
		Severity:     severity,
		SideA:        sideA,
		SideB:        sideB,
	}
}

// productA and productB build matching records with overrides applied.
func productA(overrides map[string]interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"id":         float64(1001),
		"title":      "Aviator Classic",
		"body_html":  "Classic aviator sunglasses",
		"vendor":     "Shade Co",
		"status":     "active",
		"updated_at": "2024-03-01T10:00:00Z",
		"variants": []interface{}{
			map[string]interface{}{"price": "79.00", "sku": "AV-CL-01"},
		},
	}
	for k, v := range overrides {
		m[k] = v
	}
	return m
}

func productB(overrides map[string]interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"external_id": "sku-1001",
		"name":        "Aviator Classic",
		"description": "Classic aviator sunglasses",
		"brand":       "Shade Co",
		"status":      "active",
		"updated_at":  "2024-03-01T10:00:00Z",
		"price":       79.00,
		"sku":         "AV-CL-01",
	}
	for k, v := range overrides {
		m[k] = v
	}
	return m
}
