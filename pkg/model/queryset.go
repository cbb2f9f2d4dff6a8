package model

import (
	"fmt"
	"strings"
)

// Queryset accumulates filters, ordering and slicing for one model and
// renders SELECT / COUNT statements with positional arguments. Conditions
// are written with ? placeholders and renumbered to $n at render time.
type Queryset struct {
	model  *Model
	wheres []string
	args   []any
	order  []string
	random bool
	limit  int
	offset int
}

func NewQueryset(m *Model) *Queryset {
	return &Queryset{model: m, limit: -1}
}

func (qs *Queryset) Model() *Model { return qs.model }

// Filter adds a WHERE condition. cond uses ? for each argument.
func (qs *Queryset) Filter(cond string, args ...any) *Queryset {
	qs.wheres = append(qs.wheres, cond)
	qs.args = append(qs.args, args...)
	return qs
}

// OrderBy sets the ordering. A leading '-' on a column means descending.
func (qs *Queryset) OrderBy(columns ...string) *Queryset {
	qs.order = qs.order[:0]
	qs.random = false
	for _, col := range columns {
		dir := "ASC"
		if strings.HasPrefix(col, "-") {
			col = strings.TrimPrefix(col, "-")
			dir = "DESC"
		}
		qs.order = append(qs.order, fmt.Sprintf("%q %s", col, dir))
	}
	return qs
}

// RandomOrder orders rows randomly, replacing any previous ordering.
func (qs *Queryset) RandomOrder() *Queryset {
	qs.order = nil
	qs.random = true
	return qs
}

func (qs *Queryset) Limit(n int) *Queryset {
	qs.limit = n
	return qs
}

func (qs *Queryset) Offset(n int) *Queryset {
	qs.offset = n
	return qs
}

// ChildOf restricts a page queryset to direct children of the given page.
func (qs *Queryset) ChildOf(parent Instance) *Queryset {
	return qs.Filter(`"path" LIKE ? AND "depth" = ?`,
		likePrefix(parent.Str("path")), parent.Int("depth")+1)
}

// DescendantOf restricts a page queryset to descendants of the given page,
// optionally including the page itself.
func (qs *Queryset) DescendantOf(ancestor Instance, inclusive bool) *Queryset {
	if inclusive {
		return qs.Filter(`"path" LIKE ? AND "depth" >= ?`,
			likePrefix(ancestor.Str("path")), ancestor.Int("depth"))
	}
	return qs.Filter(`"path" LIKE ? AND "depth" > ?`,
		likePrefix(ancestor.Str("path")), ancestor.Int("depth"))
}

// PathPrefixes restricts a page queryset to pages under any of the given
// materialized-path prefixes (descendant-inclusive).
func (qs *Queryset) PathPrefixes(prefixes []string) *Queryset {
	if len(prefixes) == 0 {
		return qs.Filter("FALSE")
	}
	conds := make([]string, len(prefixes))
	for i, p := range prefixes {
		conds[i] = `"path" LIKE ?`
		qs.args = append(qs.args, likePrefix(p))
	}
	qs.wheres = append(qs.wheres, "("+strings.Join(conds, " OR ")+")")
	return qs
}

// NotRoot excludes the tree root, which is never served.
func (qs *Queryset) NotRoot() *Queryset {
	return qs.Filter(`"depth" > ?`, 1)
}

// SelectSQL renders the SELECT statement for the given columns.
func (qs *Queryset) SelectSQL(columns []string) (string, []any) {
	var query strings.Builder
	query.WriteString("SELECT ")
	if len(columns) == 0 {
		query.WriteString("*")
	} else {
		quoted := make([]string, len(columns))
		for i, col := range columns {
			quoted[i] = fmt.Sprintf("%q", col)
		}
		query.WriteString(strings.Join(quoted, ", "))
	}
	query.WriteString(fmt.Sprintf(" FROM %q", qs.model.Table))
	qs.writeWhere(&query)

	if qs.random {
		query.WriteString(" ORDER BY random()")
	} else if len(qs.order) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(qs.order, ", "))
	} else {
		query.WriteString(` ORDER BY "id" ASC`)
	}

	if qs.limit >= 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", qs.limit))
	}
	if qs.offset > 0 {
		query.WriteString(fmt.Sprintf(" OFFSET %d", qs.offset))
	}

	return renumber(query.String()), qs.args
}

// CountSQL renders the matching COUNT statement, ignoring ordering and
// slicing.
func (qs *Queryset) CountSQL() (string, []any) {
	var query strings.Builder
	query.WriteString(fmt.Sprintf("SELECT count(*) AS count FROM %q", qs.model.Table))
	qs.writeWhere(&query)
	return renumber(query.String()), qs.args
}

func (qs *Queryset) writeWhere(query *strings.Builder) {
	if len(qs.wheres) == 0 {
		return
	}
	query.WriteString(" WHERE ")
	query.WriteString(strings.Join(qs.wheres, " AND "))
}

// renumber rewrites ? placeholders to $1..$n.
func renumber(sql string) string {
	var out strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			fmt.Fprintf(&out, "$%d", n)
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

// likePrefix escapes LIKE metacharacters so a path is matched literally.
func likePrefix(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, "%", `\%`)
	path = strings.ReplaceAll(path, "_", `\_`)
	return path + "%"
}
