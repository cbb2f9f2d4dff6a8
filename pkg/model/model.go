// Package model is the data layer: a registry of content models, a SQL
// queryset builder, and a pgx-backed store that decodes rows into generic
// instances. The page tree uses Wagtail-style materialized paths.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Field kinds, used for filter value coercion.
const (
	KindInt    = "int"
	KindString = "string"
	KindBool   = "bool"
	KindTime   = "time"
)

// Relation describes a field that points at other model instances.
type Relation struct {
	// Model is the label of the target model.
	Model string
	// Child marks an inline one-to-many relation stored in a child table,
	// with FK naming the child column referencing the parent row.
	Child bool
	FK    string
}

// Field is a single serializable field of a model. Column is empty for
// computed fields, which are resolved by the API layer.
type Field struct {
	Name     string
	Column   string
	Kind     string
	Relation *Relation
}

// Model describes one content model. The order of Fields drives the order
// of keys in serialized output.
type Model struct {
	Label        string
	Name         string
	PluralName   string
	Table        string
	Fields       []Field
	SearchFields []string
	ReprField    string
	IsPage       bool
}

// Field returns the named field, or nil.
func (m *Model) Field(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// HasDBField reports whether name is a column-backed field.
func (m *Model) HasDBField(name string) bool {
	f := m.Field(name)
	return f != nil && f.Column != ""
}

// FieldNames returns all field names in declaration order.
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Columns returns the db columns backing the model, in field order.
func (m *Model) Columns() []string {
	var cols []string
	for _, f := range m.Fields {
		if f.Column != "" {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// Searchable reports whether the model declares search fields.
func (m *Model) Searchable() bool {
	return len(m.SearchFields) > 0
}

// Registry holds the known models keyed by lowercased label.
type Registry struct {
	models   map[string]*Model
	snippets map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]*Model),
		snippets: make(map[string]bool),
	}
}

// Register adds a model. The snippet flag exposes it on the models endpoint.
func (r *Registry) Register(m *Model, snippet bool) {
	key := strings.ToLower(m.Label)
	r.models[key] = m
	if snippet {
		r.snippets[key] = true
	}
}

// Get looks a model up by label, case-insensitively.
func (r *Registry) Get(label string) (*Model, bool) {
	m, ok := r.models[strings.ToLower(label)]
	return m, ok
}

// Snippet returns the model only when it is registered as a snippet.
func (r *Registry) Snippet(label string) (*Model, bool) {
	key := strings.ToLower(label)
	if !r.snippets[key] {
		return nil, false
	}
	m, ok := r.models[key]
	return m, ok
}

// Snippets returns the snippet models sorted by label.
func (r *Registry) Snippets() []*Model {
	var out []*Model
	for key := range r.snippets {
		out = append(out, r.models[key])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// SnippetConfig is the declaration of one snippet model in the config file.
type SnippetConfig struct {
	Label        string             `mapstructure:"label"`
	Name         string             `mapstructure:"name"`
	PluralName   string             `mapstructure:"pluralName"`
	Table        string             `mapstructure:"table"`
	Fields       []SnippetFieldConf `mapstructure:"fields"`
	SearchFields []string           `mapstructure:"searchFields"`
	ReprField    string             `mapstructure:"reprField"`
}

type SnippetFieldConf struct {
	Name   string `mapstructure:"name"`
	Column string `mapstructure:"column"`
	Kind   string `mapstructure:"kind"`
}

// PageTypeConfig declares a page content type served by the page tree.
type PageTypeConfig struct {
	Label      string `mapstructure:"label"`
	Name       string `mapstructure:"name"`
	PluralName string `mapstructure:"pluralName"`
}

// RegisterSnippets decodes snippet declarations and registers them.
func (r *Registry) RegisterSnippets(raw []map[string]any) error {
	for _, entry := range raw {
		var conf SnippetConfig
		if err := mapstructure.Decode(entry, &conf); err != nil {
			return fmt.Errorf("decode snippet config: %w", err)
		}
		m, err := conf.Build()
		if err != nil {
			return err
		}
		r.Register(m, true)
	}
	return nil
}

// RegisterPageTypes registers page content types declared in config. They
// share the page table; the label is what the type filter and the type meta
// field report.
func (r *Registry) RegisterPageTypes(types []PageTypeConfig) error {
	for _, pt := range types {
		if pt.Label == "" || !strings.Contains(pt.Label, ".") {
			return fmt.Errorf("page type label %q must be app.model", pt.Label)
		}
		m := &Model{
			Label:      strings.ToLower(pt.Label),
			Name:       pt.Name,
			PluralName: pt.PluralName,
			Table:      PageTable,
			IsPage:     true,
		}
		if m.PluralName == "" && m.Name != "" {
			m.PluralName = m.Name + "s"
		}
		r.Register(m, false)
	}
	return nil
}

// Build validates the declaration and produces a Model.
func (c *SnippetConfig) Build() (*Model, error) {
	if c.Label == "" || !strings.Contains(c.Label, ".") {
		return nil, fmt.Errorf("snippet label %q must be app.model", c.Label)
	}
	if c.Table == "" {
		return nil, fmt.Errorf("snippet %s: table is required", c.Label)
	}
	m := &Model{
		Label:        strings.ToLower(c.Label),
		Name:         c.Name,
		PluralName:   c.PluralName,
		Table:        c.Table,
		SearchFields: c.SearchFields,
		ReprField:    c.ReprField,
	}
	if m.PluralName == "" {
		m.PluralName = m.Name + "s"
	}
	m.Fields = append(m.Fields, Field{Name: "id", Column: "id", Kind: KindInt})
	for _, f := range c.Fields {
		if f.Name == "id" {
			continue
		}
		kind := f.Kind
		if kind == "" {
			kind = KindString
		}
		col := f.Column
		if col == "" {
			col = f.Name
		}
		m.Fields = append(m.Fields, Field{Name: f.Name, Column: col, Kind: kind})
	}
	if m.ReprField == "" && len(m.Fields) > 1 {
		m.ReprField = m.Fields[1].Column
	}
	return m, nil
}

// PageTable is the backing table of the page tree.
const PageTable = "wagtailcore_page"

// PageModel builds the built-in page model. Computed fields carry no column
// and are filled in by the pages endpoint.
func PageModel() *Model {
	return &Model{
		Label:      "wagtailcore.page",
		Name:       "page",
		PluralName: "pages",
		Table:      PageTable,
		Fields: []Field{
			{Name: "id", Column: "id", Kind: KindInt},
			{Name: "type", Column: "content_type", Kind: KindString},
			{Name: "detail_url"},
			{Name: "html_url"},
			{Name: "slug", Column: "slug", Kind: KindString},
			{Name: "show_in_menus", Column: "show_in_menus", Kind: KindBool},
			{Name: "seo_title", Column: "seo_title", Kind: KindString},
			{Name: "search_description", Column: "search_description", Kind: KindString},
			{Name: "first_published_at", Column: "first_published_at", Kind: KindTime},
			{Name: "parent", Relation: &Relation{Model: "wagtailcore.page"}},
			{Name: "ancestors", Relation: &Relation{Model: "wagtailcore.page"}},
			{Name: "children"},
			{Name: "descendants"},
			{Name: "latest_revision_created_at", Column: "latest_revision_created_at", Kind: KindTime},
			{Name: "status"},
			{Name: "title", Column: "title", Kind: KindString},
			{Name: "admin_display_title"},
			{Name: "draft_title", Column: "draft_title", Kind: KindString},
			{Name: "live", Column: "live", Kind: KindBool},
			{Name: "has_unpublished_changes", Column: "has_unpublished_changes", Kind: KindBool},
			{Name: "url_path", Column: "url_path", Kind: KindString},
			{Name: "path", Column: "path", Kind: KindString},
			{Name: "depth", Column: "depth", Kind: KindInt},
			{Name: "numchild", Column: "numchild", Kind: KindInt},
		},
		SearchFields: []string{"title"},
		ReprField:    "title",
		IsPage:       true,
	}
}
