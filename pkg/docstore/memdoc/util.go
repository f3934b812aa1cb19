package memdoc

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
)

// project applies an include- or exclude-shaped projection to a copied doc.
// _id survives include projections, matching store behavior.
func project(doc bson.M, opts *docstore.FindOptions) bson.M {
	if opts == nil || len(opts.Projection) == 0 {
		return doc
	}
	include := false
	for _, field := range opts.Projection {
		if n, ok := asFloat(field.Value); ok && n > 0 {
			include = true
			break
		}
	}
	if include {
		out := bson.M{}
		if id, ok := doc["_id"]; ok {
			out["_id"] = id
		}
		for _, field := range opts.Projection {
			if n, ok := asFloat(field.Value); ok && n > 0 {
				if v, ok := lookupPath(doc, field.Key); ok {
					setPath(out, field.Key, v)
				}
			}
		}
		return out
	}
	for _, field := range opts.Projection {
		unsetPath(doc, field.Key)
	}
	return doc
}

func setPath(doc bson.M, path string, v any) {
	segs := strings.Split(path, ".")
	m := doc
	for _, seg := range segs[:len(segs)-1] {
		child, ok := asFilter(m[seg])
		if !ok {
			child = bson.M{}
			m[seg] = child
		}
		m = child
	}
	m[segs[len(segs)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	segs := strings.Split(path, ".")
	m := doc
	for _, seg := range segs[:len(segs)-1] {
		child, ok := asFilter(m[seg])
		if !ok {
			return
		}
		m = child
	}
	delete(m, segs[len(segs)-1])
}

func copyMap(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return copyMap(val)
	case map[string]any:
		return copyMap(bson.M(val))
	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = copyValue(el)
		}
		return out
	case bson.A:
		out := make(bson.A, len(val))
		for i, el := range val {
			out[i] = copyValue(el)
		}
		return out
	default:
		return v
	}
}
