package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
)

// mountAdmin wires the admin pages endpoint into a fresh HTTP router.
func mountAdmin(db *stubDB) *httputil.Router {
	apiRouter := NewRouter("/api/admin")
	apiRouter.Register(NewAdminPagesEndpoint(testDeps(db)))
	hr := httputil.NewRouter()
	apiRouter.Mount(hr)
	return hr
}

func get(hr *httputil.Router, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()
	hr.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAdminPagesListing(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: "count(*)", rows: []model.Instance{{"count": int64(2)}}},
		{contains: `FROM "wagtailcore_page"`, rows: []model.Instance{homePage(), aboutPage()}},
	}}
	rr := get(mountAdmin(db), "http://example.com/api/admin/pages/")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)

	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["total_count"])

	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, float64(2), first["id"])
	assert.Equal(t, "Home", first["title"])
	firstMeta := first["meta"].(map[string]any)
	assert.Equal(t, "demo.standardpage", firstMeta["type"])
	assert.Equal(t, "http://example.com/api/admin/pages/2/", firstMeta["detail_url"])

	types := body["__types"].(map[string]any)
	entry := types["demo.standardpage"].(map[string]any)
	assert.Equal(t, "standard page", entry["verbose_name"])
	assert.Equal(t, "standard pages", entry["verbose_name_plural"])

	// The root page is excluded at the SQL level.
	assert.Contains(t, db.queries[0], `"depth" > $1`)
}

func TestAdminPagesListingUnknownParameter(t *testing.T) {
	rr := get(mountAdmin(&stubDB{}), "http://example.com/api/admin/pages/?bogus=1&zium=2")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "query parameter is not an operation or a recognised field: bogus, zium", body["message"])
}

func TestAdminPagesListingBadFilters(t *testing.T) {
	tests := []struct {
		query   string
		message string
	}{
		{"child_of=abc", "child_of must be a positive integer"},
		{"child_of=99", "parent page doesn't exist"},
		{"descendant_of=abc", "descendant_of must be a positive integer"},
		{"descendant_of=2&child_of=2", "filtering by descendant_of with child_of is not supported"},
		{"has_children=maybe", "has_children must be 'true' or 'false'"},
		{"order=zebra", "cannot order by 'zebra' (unknown field)"},
		{"order=random&offset=5", "random ordering with offset is not supported"},
		{"type=demo.unknown", "type doesn't exist"},
		{"limit=999", "limit cannot be higher than 20"},
		{"limit=bogus", "limit must be a positive integer"},
		{"fields=title(", "fields error: unexpected end of input (missing field name)"},
		{"fields=zebra", "unknown fields: zebra"},
		{"for_explorer=1", "filtering by for_explorer without child_of is not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := get(mountAdmin(&stubDB{}), "http://example.com/api/admin/pages/?"+tt.query)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestAdminPagesListingChildOf(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: `"id" =`, rows: []model.Instance{homePage()}},
		{contains: "count(*)", rows: []model.Instance{{"count": int64(1)}}},
		{contains: `FROM "wagtailcore_page"`, rows: []model.Instance{aboutPage()}},
	}}
	rr := get(mountAdmin(db), "http://example.com/api/admin/pages/?child_of=2")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	items := body["items"].([]any)
	require.Len(t, items, 1)
}

func TestAdminPagesListingTypeFilter(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: "count(*)", rows: []model.Instance{{"count": int64(1)}}},
		{contains: `FROM "wagtailcore_page"`, rows: []model.Instance{homePage()}},
	}}
	rr := get(mountAdmin(db), "http://example.com/api/admin/pages/?type=Demo.StandardPage")
	require.Equal(t, http.StatusOK, rr.Code)

	// One content_type condition only, carrying the registry's canonical
	// lowercased label regardless of request casing.
	listing := db.queries[1]
	assert.Equal(t, 1, strings.Count(listing, `"content_type"`))
	assert.Contains(t, db.args[1], "demo.standardpage")
	assert.NotContains(t, db.args[1], "Demo.StandardPage")
}

func TestAdminPagesListingTypeFilterBasePageLabel(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: "count(*)", rows: []model.Instance{{"count": int64(2)}}},
		{contains: `FROM "wagtailcore_page"`, rows: []model.Instance{homePage(), aboutPage()}},
	}}
	rr := get(mountAdmin(db), "http://example.com/api/admin/pages/?type=wagtailcore.page")
	require.Equal(t, http.StatusOK, rr.Code)

	// The base page type places no content type restriction.
	assert.NotContains(t, db.queries[1], `"content_type"`)
}

func TestAdminPagesListingOrderByTypeRejected(t *testing.T) {
	rr := get(mountAdmin(&stubDB{}), "http://example.com/api/admin/pages/?order=type")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "cannot order by 'type' (unknown field)", body["message"])
}

func TestAdminPagesListingFieldFilterCoercion(t *testing.T) {
	rr := get(mountAdmin(&stubDB{}), "http://example.com/api/admin/pages/?show_in_menus=maybe")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "field filter error. 'maybe' is not a valid value for show_in_menus (boolean)", body["message"])
}

func TestAdminPagesDetail(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: `"id" =`, rows: []model.Instance{aboutPage()}},
		{contains: "ANY", rows: []model.Instance{homePage()}},
		{contains: "count(*)", rows: []model.Instance{{"count": int64(0)}}},
		{contains: `"path" =`, rows: []model.Instance{homePage()}},
	}}
	rr := get(mountAdmin(db), "http://example.com/api/admin/pages/3/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)

	assert.Equal(t, float64(3), body["id"])
	meta := body["meta"].(map[string]any)

	parent := meta["parent"].(map[string]any)
	assert.Equal(t, float64(2), parent["id"])
	assert.Equal(t, "Home", parent["title"])

	ancestors := meta["ancestors"].([]any)
	require.Len(t, ancestors, 1)
	ancestor := ancestors[0].(map[string]any)
	assert.Equal(t, "Home", ancestor["title"])

	descendants := meta["descendants"].(map[string]any)
	assert.Equal(t, float64(0), descendants["count"])
	assert.Equal(t, "http://example.com/api/admin/pages/?descendant_of=3", descendants["listing_url"])

	assert.Contains(t, body, "__types")
}

func TestAdminPagesDetailNotFound(t *testing.T) {
	rr := get(mountAdmin(&stubDB{}), "http://example.com/api/admin/pages/99/")
	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "not found", body["message"])
}

func TestAdminPagesFind(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: `"id" =`, rows: []model.Instance{aboutPage()}},
	}}
	rr := get(mountAdmin(db), "http://example.com/api/admin/pages/find/?id=3")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/api/admin/pages/3/", rr.Header().Get("Location"))
}

func TestAdminPagesFindNotFound(t *testing.T) {
	rr := get(mountAdmin(&stubDB{}), "http://example.com/api/admin/pages/find/?id=99")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPublicPagesFindHTMLPath(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: `"url_path" =`, rows: []model.Instance{aboutPage()}},
		{contains: `"id" =`, rows: []model.Instance{aboutPage()}},
	}}
	apiRouter := NewRouter("/api/v2")
	apiRouter.Register(NewPagesEndpoint(testDeps(db)))
	hr := httputil.NewRouter()
	apiRouter.Mount(hr)

	rr := get(hr, "http://example.com/api/v2/pages/find/?html_path=/about/")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/api/v2/pages/3/", rr.Header().Get("Location"))
}

func TestPublicPagesListingScopedToSite(t *testing.T) {
	db := &stubDB{stubs: []stub{
		{contains: `"url_path" =`, rows: []model.Instance{homePage()}},
		{contains: "count(*)", rows: []model.Instance{{"count": int64(1)}}},
		{contains: `FROM "wagtailcore_page"`, rows: []model.Instance{aboutPage()}},
	}}
	apiRouter := NewRouter("/api/v2")
	apiRouter.Register(NewPagesEndpoint(testDeps(db)))
	hr := httputil.NewRouter()
	apiRouter.Mount(hr)

	rr := get(hr, "http://example.com/api/v2/pages/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)

	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	// The public shape has no admin fields and no __types summary.
	assert.NotContains(t, item, "admin_display_title")
	assert.NotContains(t, body, "__types")

	// Base queryset restricts to live pages under the site root.
	assert.Contains(t, db.queries[1], `"live" = $1`)
	assert.Contains(t, db.queries[1], `"path" LIKE $2`)
}
