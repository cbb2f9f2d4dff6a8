package api

import (
	"strconv"
	"strings"

	"github.com/torchbox-forks/wagtail-transfer/pkg/config"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"github.com/torchbox-forks/wagtail-transfer/pkg/permission"
	"go.uber.org/zap"
)

// PagesEndpointDeps bundles what the page endpoints need.
type PagesEndpointDeps struct {
	Registry *model.Registry
	Store    *model.Store
	Policy   *permission.Policy
	Config   *config.Config
	Logger   *zap.Logger
}

// NewPagesEndpoint builds the public-shape pages endpoint: live pages of
// the configured site only, with parent available on detail views only.
func NewPagesEndpoint(deps PagesEndpointDeps) *Endpoint {
	e := &Endpoint{
		Name:     "pages",
		Model:    model.PageModel(),
		Registry: deps.Registry,
		Store:    deps.Store,
		Policy:   deps.Policy,
		Logger:   deps.Logger,
		Pagination: Pagination{
			DefaultLimit: deps.Config.Pagination.DefaultLimit,
			MaxLimit:     deps.Config.Pagination.MaxLimit,
		},
		KnownQueryParameters: knownParams("type", "child_of", "descendant_of"),
		BodyFields:           []string{"id", "title"},
		MetaFields: []string{
			"type", "detail_url", "html_url", "slug", "show_in_menus",
			"seo_title", "search_description", "first_published_at", "parent",
		},
		ListingDefaultFields: []string{
			"id", "type", "detail_url", "title", "html_url", "slug", "first_published_at",
		},
		NestedDefaultFields: []string{"id", "type", "detail_url", "title"},
		DetailOnlyFields:    []string{"parent"},
		Filters: []Filter{
			FieldsFilter{},
			ChildOfFilter{},
			DescendantOfFilter{},
			OrderingFilter{},
			SearchFilter{},
		},
	}

	e.FieldSerializers = pageFieldSerializers(deps.Config)

	e.BaseQueryset = func(rctx *RequestContext) (*model.Queryset, error) {
		qs := model.NewQueryset(e.Model).Filter(`"live" = ?`, true)
		root, err := deps.Store.PageByURLPath(rctx.Request.Context(), deps.Config.Site.RootPath)
		if err != nil {
			return nil, err
		}
		if root == nil {
			// No site configured at this root: serve nothing.
			return qs.Filter("FALSE"), nil
		}
		return qs.DescendantOf(root, true), nil
	}

	e.Queryset = func(rctx *RequestContext) (*model.Queryset, error) {
		qs, err := e.BaseQueryset(rctx)
		if err != nil {
			return nil, err
		}
		return applyTypeParameter(rctx, qs, deps.Registry)
	}

	e.RootPage = func(rctx *RequestContext) (model.Instance, error) {
		return deps.Store.PageByURLPath(rctx.Request.Context(), deps.Config.Site.RootPath)
	}

	e.FindObject = func(rctx *RequestContext) (model.Instance, error) {
		htmlPath := rctx.Request.URL.Query().Get("html_path")
		if htmlPath == "" {
			return nil, nil
		}
		urlPath := deps.Config.Site.RootPath + strings.Trim(htmlPath, "/")
		if !strings.HasSuffix(urlPath, "/") {
			urlPath += "/"
		}
		page, err := deps.Store.PageByURLPath(rctx.Request.Context(), urlPath)
		if err != nil || page == nil {
			return nil, err
		}
		qs, err := e.queryset(rctx)
		if err != nil {
			return nil, err
		}
		return e.Store.Get(rctx.Request.Context(), qs, page.ID())
	}

	return e
}

// NewAdminPagesEndpoint extends the public shape for the admin UI: every
// page except the tree root, extra status/tree fields, type summaries and
// explorer scoping.
func NewAdminPagesEndpoint(deps PagesEndpointDeps) *Endpoint {
	e := NewPagesEndpoint(deps)
	e.AppendTypes = true
	e.KnownQueryParameters = knownParams(
		"type", "child_of", "descendant_of", "has_children", "for_explorer")
	e.BodyFields = append(e.BodyFields, "admin_display_title")
	e.MetaFields = append(e.MetaFields,
		"latest_revision_created_at", "status", "children", "descendants", "ancestors")
	e.ListingDefaultFields = append(e.ListingDefaultFields,
		"latest_revision_created_at", "status", "children", "admin_display_title")
	// parent appears on admin listings too.
	e.DetailOnlyFields = nil
	e.Filters = []Filter{
		FieldsFilter{},
		ChildOfFilter{},
		DescendantOfFilter{},
		OrderingFilter{},
		SearchFilter{},
		HasChildrenFilter{},
		ForExplorerFilter{},
	}

	e.BaseQueryset = func(rctx *RequestContext) (*model.Queryset, error) {
		return model.NewQueryset(e.Model), nil
	}
	e.Queryset = func(rctx *RequestContext) (*model.Queryset, error) {
		qs, err := applyTypeParameter(rctx, model.NewQueryset(e.Model).NotRoot(), deps.Registry)
		if err != nil {
			return nil, err
		}
		return qs, nil
	}
	e.RootPage = func(rctx *RequestContext) (model.Instance, error) {
		if forExplorer(rctx) {
			path, err := deps.Policy.ExplorableRootPath(rctx.Request.Context(), rctx.User)
			if err != nil {
				return nil, err
			}
			if path == "" {
				return nil, nil
			}
			return pageByPath(rctx, deps.Store, path)
		}
		return deps.Store.Root(rctx.Request.Context())
	}
	e.FindObject = nil

	return e
}

func forExplorer(rctx *RequestContext) bool {
	v := rctx.Request.URL.Query().Get("for_explorer")
	return v != "" && v != "0"
}

// applyTypeParameter restricts pages by content type per the type query
// parameter. The default page type means no restriction.
func applyTypeParameter(rctx *RequestContext, qs *model.Queryset, registry *model.Registry) (*model.Queryset, error) {
	raw := rctx.Request.URL.Query().Get("type")
	if raw == "" || strings.EqualFold(raw, "wagtailcore.page") {
		return qs, nil
	}
	labels := strings.Split(raw, ",")
	conds := make([]string, len(labels))
	args := make([]any, len(labels))
	for i, label := range labels {
		m, ok := registry.Get(label)
		if !ok || !m.IsPage {
			return nil, badRequestf("type doesn't exist")
		}
		conds[i] = `"content_type" = ?`
		args[i] = m.Label
	}
	return qs.Filter("("+strings.Join(conds, " OR ")+")", args...), nil
}

func pageByPath(rctx *RequestContext, store *model.Store, path string) (model.Instance, error) {
	qs := model.NewQueryset(model.PageModel()).Filter(`"path" = ?`, path).Limit(1)
	rows, err := store.Fetch(rctx.Request.Context(), qs, nil)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// pageFieldSerializers computes the non-column page fields.
func pageFieldSerializers(cfg *config.Config) map[string]FieldSerializer {
	return map[string]FieldSerializer{
		"type": func(rctx *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			return rctx.Endpoint.instanceLabel(in), nil
		},
		"detail_url": func(rctx *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			e := rctx.Endpoint
			return requestBaseURL(rctx) + e.router.DetailURL(e, in.ID()), nil
		},
		"html_url": func(rctx *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			urlPath := in.Str("url_path")
			if !strings.HasPrefix(urlPath, cfg.Site.RootPath) {
				return nil, nil
			}
			return cfg.Site.RootURL + "/" + strings.TrimPrefix(urlPath, cfg.Site.RootPath), nil
		},
		"status": func(_ *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			doc := NewDocument()
			doc.Set("status", model.Status(in.Bool("live"), in.Bool("has_unpublished_changes")))
			doc.Set("live", in.Bool("live"))
			doc.Set("has_unpublished_changes", in.Bool("has_unpublished_changes"))
			return doc, nil
		},
		"admin_display_title": func(_ *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			return model.AdminDisplayTitle(in), nil
		},
		"parent": func(rctx *RequestContext, in model.Instance, nested *Serializer) (any, error) {
			parentPath := model.ParentPath(in.Str("path"))
			// The tree root is not served, so top-level pages have no parent.
			if len(parentPath) <= model.StepLen {
				return nil, nil
			}
			parent, err := pageByPath(rctx, rctx.Endpoint.Store, parentPath)
			if err != nil || parent == nil {
				return nil, err
			}
			if nested == nil {
				return parent.ID(), nil
			}
			return nested.Serialize(rctx, parent)
		},
		"children": func(rctx *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			e := rctx.Endpoint
			doc := NewDocument()
			doc.Set("count", in.Int("numchild"))
			doc.Set("listing_url", requestBaseURL(rctx)+e.router.ListingURL(e)+"?child_of="+strconv.Itoa(in.ID()))
			return doc, nil
		},
		"descendants": func(rctx *RequestContext, in model.Instance, _ *Serializer) (any, error) {
			e := rctx.Endpoint
			count, err := e.Store.DescendantCount(rctx.Request.Context(), in)
			if err != nil {
				return nil, err
			}
			doc := NewDocument()
			doc.Set("count", count)
			doc.Set("listing_url", requestBaseURL(rctx)+e.router.ListingURL(e)+"?descendant_of="+strconv.Itoa(in.ID()))
			return doc, nil
		},
		"ancestors": func(rctx *RequestContext, in model.Instance, nested *Serializer) (any, error) {
			ancestors, err := rctx.Endpoint.Store.Ancestors(rctx.Request.Context(), in)
			if err != nil {
				return nil, err
			}
			items := make([]*Document, 0, len(ancestors))
			for _, ancestor := range ancestors {
				if nested == nil {
					continue
				}
				item, err := nested.Serialize(rctx, ancestor)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			return items, nil
		},
	}
}

// requestBaseURL reconstructs scheme://host for absolute URL fields.
func requestBaseURL(rctx *RequestContext) string {
	r := rctx.Request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
