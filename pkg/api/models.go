package api

import (
	"net/http"
	"strings"

	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"go.uber.org/zap"
)

// ModelsEndpoint lists the registered snippet models and their objects.
// The listing view returns the models; the detail view, addressed by
// app.model label, returns that model's objects with generic all-column
// serialization.
type ModelsEndpoint struct {
	Registry   *model.Registry
	Store      *model.Store
	Logger     *zap.Logger
	Pagination Pagination
}

// Mount registers the handlers under base, e.g. /api/admin/models.
func (e *ModelsEndpoint) Mount(hr *httputil.Router, base string) {
	base = strings.TrimSuffix(base, "/")
	hr.Handle("GET "+base+"/{$}", http.HandlerFunc(e.ListingView))
	hr.Handle("GET "+base+"/{model_path}/{$}", http.HandlerFunc(e.DetailView))
}

// ListingView handles GET /models/. A model query parameter delegates to
// the detail view.
func (e *ModelsEndpoint) ListingView(w http.ResponseWriter, r *http.Request) {
	if modelPath := r.URL.Query().Get("model"); modelPath != "" {
		e.detailResponse(w, r, modelPath)
		return
	}

	items := make([]*Document, 0)
	search := strings.ToLower(r.URL.Query().Get("search"))
	for _, m := range e.Registry.Snippets() {
		name := titleCase(m.Name)
		if search != "" && !strings.Contains(strings.ToLower(name), search) {
			continue
		}
		item := NewDocument()
		item.Set("model_label", m.Label)
		item.Set("name", name)
		items = append(items, item)
	}

	httputil.JSON(w, http.StatusOK, Envelope(len(items), items))
}

// DetailView handles GET /models/{app.model}/.
func (e *ModelsEndpoint) DetailView(w http.ResponseWriter, r *http.Request) {
	e.detailResponse(w, r, r.PathValue("model_path"))
}

func (e *ModelsEndpoint) detailResponse(w http.ResponseWriter, r *http.Request, modelPath string) {
	doc, err := e.detail(r, modelPath)
	if err != nil {
		writeError(w, err, e.Logger)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (e *ModelsEndpoint) detail(r *http.Request, modelPath string) (*Document, error) {
	// A path without an app prefix can never name a registered model.
	if !strings.Contains(modelPath, ".") {
		return nil, errNotFound
	}
	m, ok := e.Registry.Snippet(modelPath)
	if !ok {
		return nil, errNotFound
	}

	rows, err := e.Store.Fetch(r.Context(), model.NewQueryset(m), nil)
	if err != nil {
		return nil, err
	}

	if search := strings.ToLower(r.URL.Query().Get("search")); search != "" {
		matched := rows[:0:0]
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Str(m.ReprField)), search) {
				matched = append(matched, row)
			}
		}
		rows = matched
	}

	limit, offset, err := e.Pagination.Parse(r.URL.Query())
	if err != nil {
		return nil, err
	}

	items := make([]*Document, 0)
	for _, row := range Slice(rows, limit, offset) {
		items = append(items, serializeGeneric(m, row))
	}
	return Envelope(len(rows), items), nil
}

// serializeGeneric renders every column-backed field of the model in
// declaration order.
func serializeGeneric(m *model.Model, in model.Instance) *Document {
	doc := NewDocument()
	for _, f := range m.Fields {
		if f.Column == "" {
			continue
		}
		doc.Set(f.Name, jsonValue(in[f.Column], f.Kind))
	}
	return doc
}

// titleCase capitalizes each space-separated word and lowercases the rest,
// the way verbose model names are displayed.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
