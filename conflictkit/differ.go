package conflictkit

import (
	"github.com/c0deZ3R0/go-conflict-kit/fieldval"
)

// Diff compares two representations of a resource along the static field map
// for its type and returns the disagreeing fields. Fields absent on both
// sides are skipped entirely; everything else runs through the tolerant
// comparator, so case, float noise, date formatting and array order never
// produce a conflict. Unknown resource types diff to nothing.
func Diff(rt ResourceType, sideA, sideB map[string]interface{}) []FieldConflict {
	rm, ok := lookupResourceMap(rt)
	if !ok {
		return nil
	}

	var out []FieldConflict
	for _, fm := range rm.Fields {
		rawA := extractPath(sideA, fm.PathA)
		rawB := extractPath(sideB, fm.PathB)

		va := fieldval.Sniff(rawA)
		vb := fieldval.Sniff(rawB)

		if va.IsNull() && vb.IsNull() {
			continue
		}
		if fieldval.Equal(va, vb) {
			continue
		}

		out = append(out, FieldConflict{
			Name:   fm.Name,
			ValueA: rawA,
			ValueB: rawB,
		})
	}
	return out
}
