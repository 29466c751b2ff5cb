package conflictkit

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldMapping translates one logical field name to its path on each side.
// Field maps are fixed per resource type on purpose: comparisons stay
// predictable and auditable, nothing is discovered dynamically.
type fieldMapping struct {
	Name  string
	PathA string
	PathB string
}

// resourceMap holds everything the engine knows about one resource type: how
// to derive the resource IDs, where the update timestamps live, and which
// logical fields are compared.
type resourceMap struct {
	IDPathA string
	IDPathB string

	UpdatedPathA string
	UpdatedPathB string

	// Inventory only.
	QuantityPathA string
	QuantityPathB string
	LocationsPathA string
	LocationsPathB string

	Fields []fieldMapping
}

var resourceMaps = map[ResourceType]resourceMap{
	ResourceProduct: {
		IDPathA:      "id",
		IDPathB:      "external_id",
		UpdatedPathA: "updated_at",
		UpdatedPathB: "updated_at",
		Fields: []fieldMapping{
			{Name: "title", PathA: "title", PathB: "name"},
			{Name: "description", PathA: "body_html", PathB: "description"},
			{Name: "vendor", PathA: "vendor", PathB: "brand"},
			{Name: "price", PathA: "variants.0.price", PathB: "price"},
			{Name: "sku", PathA: "variants.0.sku", PathB: "sku"},
			{Name: "tags", PathA: "tags", PathB: "tags"},
			{Name: "status", PathA: "status", PathB: "status"},
			{Name: "publishedAt", PathA: "published_at", PathB: "published_at"},
		},
	},
	ResourceCollection: {
		IDPathA:      "id",
		IDPathB:      "external_id",
		UpdatedPathA: "updated_at",
		UpdatedPathB: "updated_at",
		Fields: []fieldMapping{
			{Name: "title", PathA: "title", PathB: "name"},
			{Name: "description", PathA: "body_html", PathB: "description"},
			{Name: "handle", PathA: "handle", PathB: "slug"},
			{Name: "publishedAt", PathA: "published_at", PathB: "published_at"},
		},
	},
	ResourceInventory: {
		IDPathA:        "inventory_item_id",
		IDPathB:        "id",
		UpdatedPathA:   "updated_at",
		UpdatedPathB:   "updated_at",
		QuantityPathA:  "available",
		QuantityPathB:  "quantity",
		LocationsPathA: "location_ids",
		LocationsPathB: "location_ids",
		Fields: []fieldMapping{
			{Name: "quantity", PathA: "available", PathB: "quantity"},
			{Name: "sku", PathA: "sku", PathB: "sku"},
			{Name: "updatedAt", PathA: "updated_at", PathB: "updated_at"},
		},
	},
}

// lookupResourceMap returns the map for a known resource type.
func lookupResourceMap(rt ResourceType) (resourceMap, bool) {
	rm, ok := resourceMaps[rt]
	return rm, ok
}

// extractPath walks a dotted path through nested maps and slices. Numeric
// segments index into slices. A missing or mistyped step yields nil.
func extractPath(data map[string]interface{}, path string) interface{} {
	if data == nil || path == "" {
		return nil
	}
	var cur interface{} = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// extractID derives a resource identifier from a raw extracted value. IDs may
// arrive as strings or JSON numbers; anything else means no identifier.
func extractID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		// JSON numbers decode as float64; catalog IDs are integral.
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case fmt.Stringer:
		return id.String()
	default:
		return ""
	}
}
