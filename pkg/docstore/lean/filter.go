package lean

import (
	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
)

// SanitizeFilter strips keys whose value is nil so an unset optional filter
// never turns into an explicit "field equals null" constraint. $or and $and
// arms are sanitized recursively; arms that end up empty are dropped, and a
// connective with no remaining arms disappears entirely.
func SanitizeFilter(filter bson.M) bson.M {
	out := bson.M{}
	for k, v := range filter {
		if v == nil {
			continue
		}
		if k == "$or" || k == "$and" {
			arms := sanitizeArms(v)
			if len(arms) > 0 {
				out[k] = arms
			}
			continue
		}
		out[k] = v
	}
	return out
}

func sanitizeArms(v any) []bson.M {
	var arms []any
	switch list := v.(type) {
	case []bson.M:
		for _, m := range list {
			arms = append(arms, m)
		}
	case []any:
		arms = list
	case bson.A:
		arms = list
	}
	var out []bson.M
	for _, arm := range arms {
		m, ok := arm.(bson.M)
		if !ok {
			continue
		}
		cleaned := SanitizeFilter(m)
		if len(cleaned) > 0 {
			out = append(out, cleaned)
		}
	}
	return out
}

// Normalize mirrors the store identifier into a stable "id" string on the
// record and, recursively, on every embedded object that has a store
// identifier and does not already carry one. Idempotent.
func Normalize(v any) {
	switch val := v.(type) {
	case bson.M:
		normalizeMap(val)
	case map[string]any:
		normalizeMap(bson.M(val))
	case []any:
		for _, el := range val {
			Normalize(el)
		}
	case bson.A:
		for _, el := range val {
			Normalize(el)
		}
	}
}

func normalizeMap(m bson.M) {
	if raw, ok := m["_id"]; ok {
		if _, has := m["id"]; !has {
			if s := docstore.IDString(raw); s != "" {
				m["id"] = s
			}
		}
	}
	for k, v := range m {
		if k == "_id" || k == "id" {
			continue
		}
		Normalize(v)
	}
}
