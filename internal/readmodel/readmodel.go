// Package readmodel holds the query/page shapes and filter-building helpers
// shared by the paginated read repositories.
package readmodel

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
)

// Query is the business-shaped read query: free-text search, status
// filters, a caller-facing sort-field name, and paging.
type Query struct {
	Page       int
	PageSize   int
	SearchText string
	Statuses   []string
	SortBy     string
}

// Page is one page of converted results plus the total match count across
// all pages.
type Page[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
}

const defaultPageSize = 20

// Normalize clamps paging to sane values: page >= 1, pageSize >= 1 with a
// default when unset.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	return q
}

// Skip computes the record offset for the (already normalized) query.
func (q Query) Skip() int64 {
	return int64(q.Page-1) * int64(q.PageSize)
}

// SearchFilter builds a case-insensitive substring match OR-ed across the
// searchable fields. Empty text yields nil so the filter can be dropped.
func SearchFilter(text string, fields []string) bson.M {
	if text == "" || len(fields) == 0 {
		return nil
	}
	pattern := regexp.QuoteMeta(text)
	arms := make([]bson.M, 0, len(fields))
	for _, f := range fields {
		arms = append(arms, bson.M{f: bson.M{"$regex": pattern, "$options": "i"}})
	}
	return bson.M{"$or": arms}
}

// StatusFilter constrains field to the given set. Empty statuses yield nil.
func StatusFilter(field string, statuses []string) bson.M {
	if len(statuses) == 0 {
		return nil
	}
	values := make([]any, len(statuses))
	for i, s := range statuses {
		values[i] = s
	}
	return bson.M{field: bson.M{"$in": values}}
}

// Merge combines filter fragments, skipping nils. Later fragments win on key
// collisions except $or/$and, which are ANDed together via $and.
func Merge(fragments ...bson.M) bson.M {
	out := bson.M{}
	var ands []bson.M
	for _, frag := range fragments {
		for k, v := range frag {
			if k == "$or" || k == "$and" {
				ands = append(ands, bson.M{k: v})
				continue
			}
			out[k] = v
		}
	}
	switch len(ands) {
	case 0:
	case 1:
		for k, v := range ands[0] {
			out[k] = v
		}
	default:
		out["$and"] = ands
	}
	return out
}

// SortSpec maps a caller-facing sort-field name through an alias table onto
// the storage field, descending (newest-first). Only names present in the
// table are honored; anything else falls back to the default field, so
// callers cannot sort by arbitrary storage fields.
func SortSpec(sortBy string, aliases map[string]string, defaultField string) bson.D {
	field := defaultField
	if mapped, ok := aliases[sortBy]; ok {
		field = mapped
	}
	return bson.D{{Key: field, Value: -1}}
}
