package memdoc

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
)

// Aggregate runs the pipeline stages the repositories build: $lookup,
// $unwind, $match, $sort, $skip and $limit. Anything else is an error so a
// drifting pipeline fails loudly in tests instead of silently passing.
func (c *collection) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	rows := make([]bson.M, 0)
	for _, doc := range c.all() {
		rows = append(rows, copyMap(doc))
	}

	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("aggregate %s: stage must hold exactly one operator", c.name)
		}
		var err error
		for op, arg := range stage {
			switch op {
			case "$lookup":
				rows, err = c.lookup(rows, arg)
			case "$unwind":
				rows, err = unwind(rows, arg)
			case "$match":
				rows = matchRows(rows, arg)
			case "$sort":
				rows, err = sortStage(rows, arg)
			case "$skip":
				if n, ok := asFloat(arg); ok && int(n) < len(rows) {
					rows = rows[int(n):]
				} else if ok {
					rows = nil
				}
			case "$limit":
				if n, ok := asFloat(arg); ok && int(n) < len(rows) {
					rows = rows[:int(n)]
				}
			default:
				err = fmt.Errorf("aggregate %s: unsupported stage %s", c.name, op)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (c *collection) lookup(rows []bson.M, arg any) ([]bson.M, error) {
	spec, ok := asFilter(arg)
	if !ok {
		return nil, fmt.Errorf("aggregate %s: malformed $lookup", c.name)
	}
	from, _ := spec["from"].(string)
	localField, _ := spec["localField"].(string)
	foreignField, _ := spec["foreignField"].(string)
	as, _ := spec["as"].(string)
	if from == "" || localField == "" || foreignField == "" || as == "" {
		return nil, fmt.Errorf("aggregate %s: incomplete $lookup", c.name)
	}

	foreign := c.store.recordsFor(from, false)
	for _, row := range rows {
		matches := bson.A{}
		local, hasLocal := lookupPath(row, localField)
		if foreign != nil && hasLocal {
			for _, id := range foreign.order {
				doc := foreign.docs[id]
				fv, ok := lookupPath(doc, foreignField)
				if !ok {
					continue
				}
				if idsEqual(fv, local) {
					matches = append(matches, copyMap(doc))
				}
			}
		}
		row[as] = matches
	}
	return rows, nil
}

// idsEqual compares two values treating identifiers in any representation
// as equal when their string forms match.
func idsEqual(a, b any) bool {
	if valuesEqual(a, b) {
		return true
	}
	as, bs := docstore.IDString(a), docstore.IDString(b)
	return as != "" && as == bs
}

func unwind(rows []bson.M, arg any) ([]bson.M, error) {
	path := ""
	preserve := false
	switch spec := arg.(type) {
	case string:
		path = spec
	default:
		m, ok := asFilter(arg)
		if !ok {
			return nil, fmt.Errorf("aggregate: malformed $unwind")
		}
		path, _ = m["path"].(string)
		preserve, _ = m["preserveNullAndEmptyArrays"].(bool)
	}
	field := strings.TrimPrefix(path, "$")
	if field == "" {
		return nil, fmt.Errorf("aggregate: $unwind needs a path")
	}

	var out []bson.M
	for _, row := range rows {
		v, _ := lookupPath(row, field)
		elements := asSlice(v)
		if len(elements) == 0 {
			if preserve {
				unsetPath(row, field)
				out = append(out, row)
			}
			continue
		}
		for _, el := range elements {
			expanded := copyMap(row)
			setPath(expanded, field, el)
			out = append(out, expanded)
		}
	}
	return out, nil
}

func matchRows(rows []bson.M, arg any) []bson.M {
	filter, ok := asFilter(arg)
	if !ok {
		return rows
	}
	var out []bson.M
	for _, row := range rows {
		if matchDoc(row, filter) {
			out = append(out, row)
		}
	}
	return out
}

func sortStage(rows []bson.M, arg any) ([]bson.M, error) {
	spec, ok := asFilter(arg)
	if !ok {
		return nil, fmt.Errorf("aggregate: malformed $sort")
	}
	d := make(bson.D, 0, len(spec))
	for k, v := range spec {
		d = append(d, bson.E{Key: k, Value: v})
	}
	sortDocs(rows, d)
	return rows, nil
}
