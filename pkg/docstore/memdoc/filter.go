package memdoc

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// matchDoc evaluates the subset of the filter language the layer builds:
// implicit equality, $eq, $ne, $in, $gt(e), $lt(e), $exists, $regex with
// $options "i", and $or/$and, all over dotted paths.
func matchDoc(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			if !matchAny(doc, cond) {
				return false
			}
		case "$and":
			if !matchAll(doc, cond) {
				return false
			}
		default:
			if !matchField(doc, key, cond) {
				return false
			}
		}
	}
	return true
}

func matchAny(doc bson.M, arms any) bool {
	for _, arm := range asSlice(arms) {
		if m, ok := asFilter(arm); ok && matchDoc(doc, m) {
			return true
		}
	}
	return false
}

func matchAll(doc bson.M, arms any) bool {
	for _, arm := range asSlice(arms) {
		m, ok := asFilter(arm)
		if !ok || !matchDoc(doc, m) {
			return false
		}
	}
	return true
}

func matchField(doc bson.M, path string, cond any) bool {
	val, exists := lookupPath(doc, path)

	if ops, ok := asFilter(cond); ok && isOperatorDoc(ops) {
		return matchOps(val, exists, ops)
	}
	if !exists {
		return false
	}
	return valuesEqual(val, cond)
}

func isOperatorDoc(m bson.M) bool {
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return len(m) > 0
}

func matchOps(val any, exists bool, ops bson.M) bool {
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !exists || !valuesEqual(val, arg) {
				return false
			}
		case "$ne":
			if exists && valuesEqual(val, arg) {
				return false
			}
		case "$in":
			if !exists || !containsEqual(asSlice(arg), val) {
				return false
			}
		case "$nin":
			if exists && containsEqual(asSlice(arg), val) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if exists != want {
				return false
			}
		case "$gt":
			if c, ok := compare(val, arg); !exists || !ok || c <= 0 {
				return false
			}
		case "$gte":
			if c, ok := compare(val, arg); !exists || !ok || c < 0 {
				return false
			}
		case "$lt":
			if c, ok := compare(val, arg); !exists || !ok || c >= 0 {
				return false
			}
		case "$lte":
			if c, ok := compare(val, arg); !exists || !ok || c > 0 {
				return false
			}
		case "$regex":
			if !exists || !matchRegex(val, arg, ops["$options"]) {
				return false
			}
		case "$options":
			// consumed by $regex
		default:
			return false
		}
	}
	return true
}

func matchRegex(val, pattern, options any) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	p, ok := pattern.(string)
	if !ok {
		return false
	}
	if opts, _ := options.(string); strings.Contains(opts, "i") {
		p = "(?i)" + p
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func lookupPath(doc bson.M, path string) (any, bool) {
	cur := any(doc)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asFilter(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func valuesEqual(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	// field holding an array matches when any element equals
	for _, el := range asSlice(a) {
		if c, ok := compare(el, b); ok && c == 0 {
			return true
		}
	}
	return false
}

func containsEqual(list []any, val any) bool {
	for _, el := range list {
		if valuesEqual(val, el) {
			return true
		}
	}
	return false
}

// compare orders two scalars. ok is false for non-comparable pairs.
func compare(a, b any) (int, bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case av:
				return 1, true
			default:
				return -1, true
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case bson.A:
		return s
	case []bson.M:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

func asFilter(v any) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return bson.M(m), true
	default:
		return nil, false
	}
}

func sortDocs(docs []bson.M, spec bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range spec {
			dir := 1
			if n, ok := asFloat(field.Value); ok && n < 0 {
				dir = -1
			}
			a, _ := lookupPath(docs[i], field.Key)
			b, _ := lookupPath(docs[j], field.Key)
			c, ok := compare(a, b)
			if !ok || c == 0 {
				continue
			}
			return c*dir < 0
		}
		return false
	})
}

