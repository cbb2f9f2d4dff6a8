package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuerysetSelectSQL(t *testing.T) {
	m := &Model{Table: "snippets_advert"}

	qs := NewQueryset(m).
		Filter(`"live" = ?`, true).
		Filter(`"slug" = ?`, "home").
		OrderBy("-first_published_at").
		Limit(20).
		Offset(40)

	sql, args := qs.SelectSQL([]string{"id", "title"})
	assert.Equal(t,
		`SELECT "id", "title" FROM "snippets_advert" WHERE "live" = $1 AND "slug" = $2 ORDER BY "first_published_at" DESC LIMIT 20 OFFSET 40`,
		sql)
	assert.Equal(t, []any{true, "home"}, args)
}

func TestQuerysetDefaults(t *testing.T) {
	qs := NewQueryset(&Model{Table: "t"})
	sql, args := qs.SelectSQL(nil)
	assert.Equal(t, `SELECT * FROM "t" ORDER BY "id" ASC`, sql)
	assert.Empty(t, args)
}

func TestQuerysetRandomOrder(t *testing.T) {
	qs := NewQueryset(&Model{Table: "t"}).OrderBy("title").RandomOrder()
	sql, _ := qs.SelectSQL(nil)
	assert.Contains(t, sql, "ORDER BY random()")
	assert.NotContains(t, sql, `"title"`)
}

func TestQuerysetCountSQL(t *testing.T) {
	qs := NewQueryset(&Model{Table: "t"}).Filter(`"id" = ?`, 7).Limit(1).OrderBy("id")
	sql, args := qs.CountSQL()
	assert.Equal(t, `SELECT count(*) AS count FROM "t" WHERE "id" = $1`, sql)
	assert.Equal(t, []any{7}, args)
}

func TestQuerysetChildOf(t *testing.T) {
	parent := Instance{"path": "00010001", "depth": int32(2)}
	qs := NewQueryset(&Model{Table: PageTable}).ChildOf(parent)
	sql, args := qs.SelectSQL(nil)
	assert.Contains(t, sql, `"path" LIKE $1 AND "depth" = $2`)
	assert.Equal(t, []any{"00010001%", 3}, args)
}

func TestQuerysetDescendantOf(t *testing.T) {
	page := Instance{"path": "0001", "depth": int32(1)}

	qs := NewQueryset(&Model{Table: PageTable}).DescendantOf(page, false)
	_, args := qs.SelectSQL(nil)
	assert.Equal(t, []any{"0001%", 1}, args)

	qs = NewQueryset(&Model{Table: PageTable}).DescendantOf(page, true)
	sql, args := qs.SelectSQL(nil)
	assert.Contains(t, sql, `"depth" >= $2`)
	assert.Equal(t, []any{"0001%", 1}, args)
}

func TestQuerysetPathPrefixes(t *testing.T) {
	qs := NewQueryset(&Model{Table: PageTable}).PathPrefixes([]string{"00010001", "00010002"})
	sql, args := qs.SelectSQL(nil)
	assert.Contains(t, sql, `("path" LIKE $1 OR "path" LIKE $2)`)
	assert.Equal(t, []any{"00010001%", "00010002%"}, args)

	qs = NewQueryset(&Model{Table: PageTable}).PathPrefixes(nil)
	sql, _ = qs.SelectSQL(nil)
	assert.Contains(t, sql, "FALSE")
}
