package readmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestQueryNormalize(t *testing.T) {
	t.Run("clamps page and defaults pageSize", func(t *testing.T) {
		q := Query{Page: 0, PageSize: -5}.Normalize()
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, 20, q.PageSize)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		q := Query{Page: 3, PageSize: 7}.Normalize()
		assert.Equal(t, 3, q.Page)
		assert.Equal(t, 7, q.PageSize)
	})
}

func TestQuerySkip(t *testing.T) {
	assert.Equal(t, int64(0), Query{Page: 1, PageSize: 20}.Skip())
	assert.Equal(t, int64(40), Query{Page: 3, PageSize: 20}.Skip())
}

func TestSearchFilter(t *testing.T) {
	t.Run("empty text yields nil", func(t *testing.T) {
		assert.Nil(t, SearchFilter("", []string{"title"}))
	})

	t.Run("one arm per searchable field", func(t *testing.T) {
		filter := SearchFilter("bike", []string{"title", "description"})
		arms := filter["$or"].([]bson.M)
		assert.Len(t, arms, 2)
		assert.Equal(t, bson.M{"$regex": "bike", "$options": "i"}, arms[0]["title"])
	})

	t.Run("regex metacharacters are quoted", func(t *testing.T) {
		filter := SearchFilter("a.b*", []string{"title"})
		arm := filter["$or"].([]bson.M)[0]
		assert.Equal(t, `a\.b\*`, arm["title"].(bson.M)["$regex"])
	})
}

func TestStatusFilter(t *testing.T) {
	assert.Nil(t, StatusFilter("state", nil))
	assert.Equal(t,
		bson.M{"state": bson.M{"$in": []any{"published", "paused"}}},
		StatusFilter("state", []string{"published", "paused"}))
}

func TestMerge(t *testing.T) {
	t.Run("skips nil fragments", func(t *testing.T) {
		out := Merge(nil, bson.M{"a": 1})
		assert.Equal(t, bson.M{"a": 1}, out)
	})

	t.Run("single connective passes through", func(t *testing.T) {
		or := bson.M{"$or": []bson.M{{"a": 1}}}
		out := Merge(or, bson.M{"state": "x"})
		assert.Equal(t, or["$or"], out["$or"])
		assert.Equal(t, "x", out["state"])
	})

	t.Run("multiple connectives are ANDed", func(t *testing.T) {
		out := Merge(
			bson.M{"$or": []bson.M{{"a": 1}}},
			bson.M{"$or": []bson.M{{"b": 2}}},
		)
		ands := out["$and"].([]bson.M)
		assert.Len(t, ands, 2)
		_, hasOr := out["$or"]
		assert.False(t, hasOr)
	})
}

func TestSortSpec(t *testing.T) {
	aliases := map[string]string{"publishedAt": "createdAt", "status": "state"}

	t.Run("maps through the alias table descending", func(t *testing.T) {
		assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, SortSpec("publishedAt", aliases, "createdAt"))
		assert.Equal(t, bson.D{{Key: "state", Value: -1}}, SortSpec("status", aliases, "createdAt"))
	})

	t.Run("unknown names fall back to the default field", func(t *testing.T) {
		assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, SortSpec("password", aliases, "createdAt"))
		assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, SortSpec("", aliases, "createdAt"))
	})
}
