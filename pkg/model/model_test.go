package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(PageModel(), false)
	r.Register(&Model{Label: "demo.advert", Name: "advert", PluralName: "adverts", Table: "demo_advert"}, true)

	m, ok := r.Get("Demo.Advert")
	require.True(t, ok)
	assert.Equal(t, "demo.advert", m.Label)

	_, ok = r.Get("demo.unknown")
	assert.False(t, ok)

	_, ok = r.Snippet("wagtailcore.page")
	assert.False(t, ok, "pages are not snippets")

	_, ok = r.Snippet("demo.advert")
	assert.True(t, ok)

	snippets := r.Snippets()
	require.Len(t, snippets, 1)
	assert.Equal(t, "demo.advert", snippets[0].Label)
}

func TestRegisterSnippetsFromConfig(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterSnippets([]map[string]any{
		{
			"label": "demo.Advert",
			"name":  "advert",
			"table": "demo_advert",
			"fields": []map[string]any{
				{"name": "text"},
				{"name": "url", "column": "link_url"},
				{"name": "clicks", "kind": "int"},
			},
			"searchFields": []string{"text"},
		},
	})
	require.NoError(t, err)

	m, ok := r.Snippet("demo.advert")
	require.True(t, ok)
	assert.Equal(t, "adverts", m.PluralName)
	assert.Equal(t, []string{"id", "text", "url", "clicks"}, m.FieldNames())
	assert.Equal(t, "link_url", m.Field("url").Column)
	assert.Equal(t, KindInt, m.Field("clicks").Kind)
	assert.Equal(t, "text", m.ReprField)
	assert.True(t, m.Searchable())
}

func TestSnippetConfigValidation(t *testing.T) {
	_, err := (&SnippetConfig{Label: "nodot", Table: "t"}).Build()
	assert.Error(t, err)

	_, err = (&SnippetConfig{Label: "a.b"}).Build()
	assert.Error(t, err)
}

func TestRegisterPageTypes(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterPageTypes([]PageTypeConfig{
		{Label: "demo.StandardPage", Name: "standard page"},
	})
	assert.NoError(t, err)

	m, ok := reg.Get("demo.standardpage")
	assert.True(t, ok)
	assert.True(t, m.IsPage)
	assert.Equal(t, PageTable, m.Table)
	assert.Equal(t, "standard pages", m.PluralName)
	_, snippet := reg.Snippet("demo.standardpage")
	assert.False(t, snippet, "page types are not snippets")

	assert.Error(t, reg.RegisterPageTypes([]PageTypeConfig{{Label: "nodot"}}))
}

func TestPageModel(t *testing.T) {
	m := PageModel()
	assert.True(t, m.IsPage)
	assert.Equal(t, PageTable, m.Table)
	assert.True(t, m.HasDBField("title"))
	assert.False(t, m.HasDBField("status"), "status is computed")
	assert.NotNil(t, m.Field("parent").Relation)
	assert.Nil(t, m.Field("missing"))
}
