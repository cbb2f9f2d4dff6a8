// Package api implements the admin content API: listing, detail and find
// views per model endpoint, driven by a recursive fields parameter, filter
// backends and limit/offset pagination.
package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"github.com/torchbox-forks/wagtail-transfer/pkg/permission"
	"go.uber.org/zap"
)

// baseKnownQueryParameters are accepted on every endpoint. "_" is used by
// jQuery for cache busting.
var baseKnownQueryParameters = []string{
	"limit",
	"offset",
	"fields",
	"order",
	"search",
	"search_operator",
	"_",
	"format",
}

// FieldSerializer computes the value of a non-column field. nested is the
// serializer built for the field's sub-fields, nil for scalar fields.
type FieldSerializer func(rctx *RequestContext, in model.Instance, nested *Serializer) (any, error)

// Endpoint serves one model over listing, detail and find views. The
// zero-value funcs fall back to sensible defaults; constructors in this
// package assemble the page and snippet configurations.
type Endpoint struct {
	Name       string
	Model      *model.Model
	Registry   *model.Registry
	Store      *model.Store
	Policy     *permission.Policy
	Logger     *zap.Logger
	Pagination Pagination

	KnownQueryParameters map[string]bool
	BodyFields           []string
	MetaFields           []string
	ListingDefaultFields []string
	NestedDefaultFields  []string
	DetailOnlyFields     []string
	Filters              []Filter
	FieldSerializers     map[string]FieldSerializer

	// AppendTypes adds the __types summary of models seen while serializing.
	AppendTypes bool

	// BaseQueryset scopes every lookup, including child_of/descendant_of
	// parent resolution. Queryset layers request filters (e.g. type) on top.
	BaseQueryset func(rctx *RequestContext) (*model.Queryset, error)
	Queryset     func(rctx *RequestContext) (*model.Queryset, error)

	// RootPage resolves the child_of=root alias.
	RootPage func(rctx *RequestContext) (model.Instance, error)
	// FindObject resolves non-id find lookups such as html_path.
	FindObject func(rctx *RequestContext) (model.Instance, error)

	router *Router
}

// RequestContext carries per-request serialization state.
type RequestContext struct {
	Endpoint *Endpoint
	Request  *http.Request
	User     *permission.User

	// childOfParent is set by the child_of filter; for_explorer requires it.
	childOfParent model.Instance

	seenOrder []string
	seen      map[string]bool
}

func (e *Endpoint) newRequestContext(r *http.Request) *RequestContext {
	return &RequestContext{
		Endpoint: e,
		Request:  r,
		User:     permission.FromContext(r.Context()),
		seen:     make(map[string]bool),
	}
}

// SeeType records a model label for the __types summary.
func (rctx *RequestContext) SeeType(label string) {
	if label == "" || rctx.seen[label] {
		return
	}
	rctx.seen[label] = true
	rctx.seenOrder = append(rctx.seenOrder, label)
}

// Router returns the router the endpoint is mounted on.
func (e *Endpoint) Router() *Router { return e.router }

// allFields returns body then meta fields, deduplicated, preserving order.
func (e *Endpoint) allFields() []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, e.BodyFields...), e.MetaFields...) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (e *Endpoint) isMetaField(name string) bool {
	for _, m := range e.MetaFields {
		if m == name {
			return true
		}
	}
	return false
}

// availableDBFields returns the endpoint fields that are backed by a
// database column, used for query-parameter whitelisting and field filters.
func (e *Endpoint) availableDBFields() map[string]bool {
	out := make(map[string]bool)
	for _, name := range e.allFields() {
		if e.Model.HasDBField(name) {
			out[name] = true
		}
	}
	return out
}

// checkQueryParameters rejects query keys that are neither operations nor
// filterable fields.
func (e *Endpoint) checkQueryParameters(r *http.Request) error {
	allowed := e.availableDBFields()
	var unknown []string
	for key := range r.URL.Query() {
		if !allowed[key] && !e.KnownQueryParameters[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return badRequestf("query parameter is not an operation or a recognised field: %s",
			strings.Join(unknown, ", "))
	}
	return nil
}

func (e *Endpoint) baseQueryset(rctx *RequestContext) (*model.Queryset, error) {
	if e.BaseQueryset != nil {
		return e.BaseQueryset(rctx)
	}
	return model.NewQueryset(e.Model), nil
}

func (e *Endpoint) queryset(rctx *RequestContext) (*model.Queryset, error) {
	if e.Queryset != nil {
		return e.Queryset(rctx)
	}
	return e.baseQueryset(rctx)
}

func (e *Endpoint) fieldsConfig(r *http.Request) ([]FieldConfig, error) {
	raw, ok := r.URL.Query()["fields"]
	if !ok {
		return nil, nil
	}
	fields, err := ParseFieldsParameter(raw[0])
	if err != nil {
		return nil, badRequestf("fields error: %s", err)
	}
	return fields, nil
}

// ListingView handles GET /<name>/.
func (e *Endpoint) ListingView(w http.ResponseWriter, r *http.Request) {
	rctx := e.newRequestContext(r)
	doc, err := e.listing(rctx)
	if err != nil {
		writeError(w, err, e.Logger)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (e *Endpoint) listing(rctx *RequestContext) (*Document, error) {
	if err := e.checkQueryParameters(rctx.Request); err != nil {
		return nil, err
	}

	fieldsConfig, err := e.fieldsConfig(rctx.Request)
	if err != nil {
		return nil, err
	}
	serializer, err := e.newSerializer(fieldsConfig, ModeListing)
	if err != nil {
		return nil, err
	}

	qs, err := e.queryset(rctx)
	if err != nil {
		return nil, err
	}
	for _, filter := range e.Filters {
		if err := filter.Apply(rctx, qs); err != nil {
			return nil, err
		}
	}

	limit, offset, err := e.Pagination.Parse(rctx.Request.URL.Query())
	if err != nil {
		return nil, err
	}

	total, err := e.Store.Count(rctx.Request.Context(), qs)
	if err != nil {
		return nil, err
	}
	qs.Limit(limit).Offset(offset)

	rows, err := e.Store.Fetch(rctx.Request.Context(), qs, nil)
	if err != nil {
		return nil, err
	}

	items := make([]*Document, 0, len(rows))
	for _, row := range rows {
		item, err := serializer.Serialize(rctx, row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	doc := Envelope(total, items)
	if e.AppendTypes {
		doc.Set("__types", e.typeInfo(rctx))
	}
	return doc, nil
}

// DetailView handles GET /<name>/{id}/.
func (e *Endpoint) DetailView(w http.ResponseWriter, r *http.Request) {
	rctx := e.newRequestContext(r)
	doc, err := e.detail(rctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err, e.Logger)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (e *Endpoint) detail(rctx *RequestContext, rawID string) (*Document, error) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, errNotFound
	}

	fieldsConfig, err := e.fieldsConfig(rctx.Request)
	if err != nil {
		return nil, err
	}
	serializer, err := e.newSerializer(fieldsConfig, ModeDetail)
	if err != nil {
		return nil, err
	}

	qs, err := e.queryset(rctx)
	if err != nil {
		return nil, err
	}
	instance, err := e.Store.Get(rctx.Request.Context(), qs, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, errNotFound
	}

	doc, err := serializer.Serialize(rctx, instance)
	if err != nil {
		return nil, err
	}
	if e.AppendTypes {
		doc.Set("__types", e.typeInfo(rctx))
	}
	return doc, nil
}

// FindView handles GET /<name>/find/, redirecting to the detail view of the
// object located by the query.
func (e *Endpoint) FindView(w http.ResponseWriter, r *http.Request) {
	rctx := e.newRequestContext(r)
	instance, err := e.findObject(rctx)
	if err != nil {
		writeError(w, err, e.Logger)
		return
	}
	if instance == nil {
		writeError(w, errNotFound, e.Logger)
		return
	}
	http.Redirect(w, r, e.router.DetailURL(e, instance.ID()), http.StatusFound)
}

func (e *Endpoint) findObject(rctx *RequestContext) (model.Instance, error) {
	if e.FindObject != nil {
		instance, err := e.FindObject(rctx)
		if err != nil || instance != nil {
			return instance, err
		}
	}
	if rawID := rctx.Request.URL.Query().Get("id"); rawID != "" {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, errNotFound
		}
		qs, err := e.queryset(rctx)
		if err != nil {
			return nil, err
		}
		return e.Store.Get(rctx.Request.Context(), qs, id)
	}
	return nil, nil
}

// typeInfo summarizes the models seen while serializing the response.
func (e *Endpoint) typeInfo(rctx *RequestContext) *Document {
	types := NewDocument()
	for _, label := range rctx.seenOrder {
		entry := NewDocument()
		if m, ok := e.Registry.Get(label); ok {
			entry.Set("verbose_name", m.Name)
			entry.Set("verbose_name_plural", m.PluralName)
		} else {
			name := label
			if _, rest, ok := strings.Cut(label, "."); ok {
				name = rest
			}
			entry.Set("verbose_name", name)
			entry.Set("verbose_name_plural", name+"s")
		}
		types.Set(label, entry)
	}
	return types
}

// instanceLabel is the content-type label serialized instances report.
func (e *Endpoint) instanceLabel(in model.Instance) string {
	if e.Model.IsPage {
		if label := in.Str("content_type"); label != "" {
			return label
		}
	}
	return e.Model.Label
}

func knownParams(extra ...string) map[string]bool {
	out := make(map[string]bool)
	for _, p := range baseKnownQueryParameters {
		out[p] = true
	}
	for _, p := range extra {
		out[p] = true
	}
	return out
}
