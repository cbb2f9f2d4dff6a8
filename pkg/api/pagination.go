package api

import (
	"net/url"
	"strconv"
)

// Pagination applies limit/offset slicing with a capped page size and wraps
// results in the meta.total_count envelope.
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
}

// Parse extracts limit and offset from the query, enforcing bounds.
func (p Pagination) Parse(query url.Values) (limit, offset int, err error) {
	limit = p.DefaultLimit
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, badRequestf("limit must be a positive integer")
		}
		if p.MaxLimit > 0 && limit > p.MaxLimit {
			return 0, 0, badRequestf("limit cannot be higher than %d", p.MaxLimit)
		}
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, badRequestf("offset must be a positive integer")
		}
	}
	return limit, offset, nil
}

// Envelope wraps a page of items with the collection's total count.
func Envelope(totalCount int, items any) *Document {
	meta := NewDocument()
	meta.Set("total_count", totalCount)
	doc := NewDocument()
	doc.Set("meta", meta)
	doc.Set("items", items)
	return doc
}

// Slice applies limit/offset to an in-memory collection.
func Slice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
