package api

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentOrder(t *testing.T) {
	doc := NewDocument()
	doc.Set("id", 1)
	doc.Set("meta", map[string]string{"type": "demo.advert"})
	doc.Set("title", "Home")
	doc.Set("id", 2)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"id":2,"meta":{"type":"demo.advert"},"title":"Home"}`, string(out))
	assert.Equal(t, []string{"id", "meta", "title"}, doc.Keys())
}

func TestDocumentNested(t *testing.T) {
	meta := NewDocument()
	meta.Set("total_count", 0)
	doc := NewDocument()
	doc.Set("meta", meta)
	doc.Set("items", []*Document{})

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"meta":{"total_count":0},"items":[]}`, string(out))
}

func TestDocumentGet(t *testing.T) {
	doc := NewDocument()
	doc.Set("id", 1)
	v, ok := doc.Get("id")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = doc.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, doc.Len())
}
