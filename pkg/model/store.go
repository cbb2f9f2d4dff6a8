package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// GroupPagePermissionTable grants a group a permission on a page subtree.
const GroupPagePermissionTable = "wagtailcore_grouppagepermission"

// Store runs querysets and the handful of fixed lookups the endpoints need.
type Store struct {
	db     DB
	logger *zap.Logger
}

func NewStore(db DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Fetch executes the queryset and returns the selected columns of every
// matching row.
func (s *Store) Fetch(ctx context.Context, qs *Queryset, columns []string) ([]Instance, error) {
	sql, args := qs.SelectSQL(columns)
	s.logger.Debug("fetch", zap.String("sql", sql))
	return s.db.Query(ctx, sql, args...)
}

// Count returns the number of rows matching the queryset.
func (s *Store) Count(ctx context.Context, qs *Queryset) (int, error) {
	sql, args := qs.CountSQL()
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	return rows[0].Int("count"), nil
}

// Get fetches one instance by id. Returns nil when the queryset has no
// matching row.
func (s *Store) Get(ctx context.Context, qs *Queryset, id int) (Instance, error) {
	qs.Filter(`"id" = ?`, id).Limit(1)
	rows, err := s.Fetch(ctx, qs, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Root returns the page tree root.
func (s *Store) Root(ctx context.Context) (Instance, error) {
	sql := fmt.Sprintf(`SELECT * FROM %q WHERE "depth" = $1 LIMIT 1`, PageTable)
	rows, err := s.db.Query(ctx, sql, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("page tree has no root")
	}
	return rows[0], nil
}

// PageByURLPath resolves a page from its url_path. The trailing slash is
// significant; callers normalize before lookup.
func (s *Store) PageByURLPath(ctx context.Context, urlPath string) (Instance, error) {
	sql := fmt.Sprintf(`SELECT * FROM %q WHERE "url_path" = $1 LIMIT 1`, PageTable)
	rows, err := s.db.Query(ctx, sql, urlPath)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Ancestors returns the page's ancestors shallowest-first, excluding the
// tree root.
func (s *Store) Ancestors(ctx context.Context, page Instance) ([]Instance, error) {
	paths := AncestorPaths(page.Str("path"))
	if len(paths) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(`SELECT * FROM %q WHERE "path" = ANY($1) AND "depth" > $2 ORDER BY "depth" ASC`, PageTable)
	return s.db.Query(ctx, sql, paths, 1)
}

// DescendantCount counts the strict descendants of a page.
func (s *Store) DescendantCount(ctx context.Context, page Instance) (int, error) {
	qs := NewQueryset(&Model{Table: PageTable}).DescendantOf(page, false)
	return s.Count(ctx, qs)
}

// GroupPagePaths returns the paths of pages any of the given groups holds a
// permission on. These are the roots of the groups' explorable subtrees.
func (s *Store) GroupPagePaths(ctx context.Context, groups []string) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(
		`SELECT DISTINCT p."path" FROM %q p JOIN %q g ON g."page_id" = p."id" WHERE g."group_name" = ANY($1)`,
		PageTable, GroupPagePermissionTable)
	rows, err := s.db.Query(ctx, sql, groups)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		paths = append(paths, row.Str("path"))
	}
	return paths, nil
}
