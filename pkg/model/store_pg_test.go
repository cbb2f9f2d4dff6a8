package model

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/torchbox-forks/wagtail-transfer/internal/testutil"
	"github.com/torchbox-forks/wagtail-transfer/internal/testutil/pgtest"
)

type pageFixture struct {
	Pages []struct {
		ID          int    `json:"id"`
		Path        string `json:"path"`
		Depth       int    `json:"depth"`
		Numchild    int    `json:"numchild"`
		URLPath     string `json:"url_path"`
		Title       string `json:"title"`
		ContentType string `json:"content_type"`
		Live        bool   `json:"live"`
	} `json:"pages"`
}

const pageSchema = `
DROP TABLE IF EXISTS wagtailcore_grouppagepermission;
DROP TABLE IF EXISTS wagtailcore_page;
CREATE TABLE wagtailcore_page (
	id integer PRIMARY KEY,
	path text NOT NULL,
	depth integer NOT NULL,
	numchild integer NOT NULL DEFAULT 0,
	url_path text NOT NULL,
	title text NOT NULL,
	draft_title text NOT NULL DEFAULT '',
	content_type text NOT NULL DEFAULT '',
	live boolean NOT NULL DEFAULT true,
	has_unpublished_changes boolean NOT NULL DEFAULT false,
	slug text NOT NULL DEFAULT '',
	show_in_menus boolean NOT NULL DEFAULT false,
	seo_title text NOT NULL DEFAULT '',
	search_description text NOT NULL DEFAULT '',
	first_published_at timestamptz,
	latest_revision_created_at timestamptz
);
CREATE TABLE wagtailcore_grouppagepermission (
	group_name text NOT NULL,
	page_id integer NOT NULL REFERENCES wagtailcore_page (id)
);
`

func TestStoreAgainstPostgres(t *testing.T) {
	if os.Getenv("TEST_DATABASE") == "" {
		t.Skip("TEST_DATABASE not set")
	}

	ctx := context.Background()

	var fixture pageFixture
	_, err := testutil.LoadJSON("pages.json", &fixture)
	require.NoError(t, err)
	require.NotEmpty(t, fixture.Pages)

	pgtest.WithConn(t, func(conn *pgx.Conn) {
		_, err := conn.Exec(ctx, pageSchema)
		require.NoError(t, err)

		for _, p := range fixture.Pages {
			_, err = conn.Exec(ctx,
				`INSERT INTO wagtailcore_page (id, path, depth, numchild, url_path, title, content_type, live)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				p.ID, p.Path, p.Depth, p.Numchild, p.URLPath, p.Title, p.ContentType, p.Live)
			require.NoError(t, err)
		}
		_, err = conn.Exec(ctx,
			`INSERT INTO wagtailcore_grouppagepermission (group_name, page_id) VALUES ('editors', 2)`)
		require.NoError(t, err)

		db, err := Connect(ctx, os.Getenv("TEST_DATABASE"), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer db.Close()
		store := NewStore(db, zaptest.NewLogger(t))

		root, err := store.Root(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, root.ID())

		home, err := store.PageByURLPath(ctx, "/home/")
		require.NoError(t, err)
		require.NotNil(t, home)
		assert.Equal(t, "Home", home.Str("title"))

		missing, err := store.PageByURLPath(ctx, "/nowhere/")
		require.NoError(t, err)
		assert.Nil(t, missing)

		about, err := store.Get(ctx, NewQueryset(PageModel()), 3)
		require.NoError(t, err)
		require.NotNil(t, about)

		ancestors, err := store.Ancestors(ctx, about)
		require.NoError(t, err)
		require.Len(t, ancestors, 1, "tree root is excluded")
		assert.Equal(t, 2, ancestors[0].ID())

		descendants, err := store.DescendantCount(ctx, home)
		require.NoError(t, err)
		assert.Equal(t, 2, descendants)

		live, err := store.Count(ctx, NewQueryset(PageModel()).Filter(`"live" = ?`, true))
		require.NoError(t, err)
		assert.Equal(t, 3, live)

		children, err := store.Fetch(ctx, NewQueryset(PageModel()).ChildOf(home).OrderBy("title"), []string{"id", "title"})
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "About", children[0].Str("title"))
		assert.Equal(t, "Contact", children[1].Str("title"))

		paths, err := store.GroupPagePaths(ctx, []string{"editors", "unknown"})
		require.NoError(t, err)
		assert.Equal(t, []string{"00010001"}, paths)

		_, err = conn.Exec(ctx, `DROP TABLE wagtailcore_grouppagepermission; DROP TABLE wagtailcore_page`)
		require.NoError(t, err)
	})
}
