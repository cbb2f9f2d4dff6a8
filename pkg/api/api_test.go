package api

import (
	"context"
	"strings"
	"time"

	"github.com/torchbox-forks/wagtail-transfer/pkg/config"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"github.com/torchbox-forks/wagtail-transfer/pkg/permission"
	"go.uber.org/zap"
)

// stubDB serves canned rows: the first stub whose substring appears in the
// SQL wins. Queries are recorded for assertions.
type stub struct {
	contains string
	rows     []model.Instance
}

type stubDB struct {
	stubs   []stub
	queries []string
	args    [][]any
}

func (d *stubDB) Query(_ context.Context, sql string, args ...any) ([]model.Instance, error) {
	d.queries = append(d.queries, sql)
	d.args = append(d.args, args)
	for _, s := range d.stubs {
		if strings.Contains(sql, s.contains) {
			return s.rows, nil
		}
	}
	return nil, nil
}

var publishedAt = time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)

func rootPage() model.Instance {
	return model.Instance{
		"id": int32(1), "path": "0001", "depth": int32(1), "numchild": int32(1),
		"url_path": "/", "title": "Root", "draft_title": "",
		"content_type": "wagtailcore.page", "live": true, "has_unpublished_changes": false,
		"slug": "root", "show_in_menus": false, "seo_title": "", "search_description": "",
	}
}

func homePage() model.Instance {
	return model.Instance{
		"id": int32(2), "path": "00010001", "depth": int32(2), "numchild": int32(1),
		"url_path": "/home/", "title": "Home", "draft_title": "",
		"content_type": "demo.standardpage", "live": true, "has_unpublished_changes": false,
		"slug": "home", "show_in_menus": true, "seo_title": "", "search_description": "",
		"first_published_at": publishedAt, "latest_revision_created_at": publishedAt,
	}
}

func aboutPage() model.Instance {
	return model.Instance{
		"id": int32(3), "path": "000100010001", "depth": int32(3), "numchild": int32(0),
		"url_path": "/home/about/", "title": "About", "draft_title": "About us",
		"content_type": "demo.standardpage", "live": true, "has_unpublished_changes": true,
		"slug": "about", "show_in_menus": false, "seo_title": "", "search_description": "",
		"first_published_at": publishedAt, "latest_revision_created_at": publishedAt,
	}
}

func testRegistry() *model.Registry {
	reg := model.NewRegistry()
	reg.Register(model.PageModel(), false)
	reg.Register(&model.Model{
		Label: "demo.standardpage", Name: "standard page", PluralName: "standard pages",
		Table: model.PageTable, IsPage: true,
	}, false)
	reg.Register(&model.Model{
		Label: "demo.advert", Name: "advert", PluralName: "adverts",
		Table: "demo_advert",
		Fields: []model.Field{
			{Name: "id", Column: "id", Kind: model.KindInt},
			{Name: "text", Column: "text", Kind: model.KindString},
			{Name: "url", Column: "url", Kind: model.KindString},
		},
		SearchFields: []string{"text"},
		ReprField:    "text",
	}, true)
	return reg
}

func testDeps(db *stubDB) PagesEndpointDeps {
	cfg := config.Default()
	cfg.Database.ConnString = "postgres://localhost/test"
	cfg.Users = []config.UserConfig{
		{Username: "alice", Groups: []string{"editors"}},
		{Username: "root", Superuser: true},
	}
	cfg.Groups = []config.GroupConfig{{Name: "editors"}}

	store := model.NewStore(db, nil)
	return PagesEndpointDeps{
		Registry: testRegistry(),
		Store:    store,
		Policy:   permission.NewPolicy(&cfg, store),
		Config:   &cfg,
		Logger:   zap.NewNop(),
	}
}

// newAdminEndpoint wires an admin pages endpoint into a router rooted at
// /api/admin so URL fields resolve.
func newAdminEndpoint(db *stubDB) *Endpoint {
	e := NewAdminPagesEndpoint(testDeps(db))
	NewRouter("/api/admin").Register(e)
	return e
}
