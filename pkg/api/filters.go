package api

import (
	"strconv"
	"strings"

	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
)

// Filter shapes the queryset from request query parameters. Filters run in
// order before pagination.
type Filter interface {
	Apply(rctx *RequestContext, qs *model.Queryset) error
}

// FieldsFilter applies exact-match filtering for query parameters naming
// database-backed fields.
type FieldsFilter struct{}

func (FieldsFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	e := rctx.Endpoint
	available := e.availableDBFields()
	for name, values := range rctx.Request.URL.Query() {
		if !available[name] || len(values) == 0 {
			continue
		}
		// Operation parameters such as type have dedicated handling even
		// when they shadow a column-backed field.
		if e.KnownQueryParameters[name] {
			continue
		}
		field := e.Model.Field(name)
		value, err := coerceFilterValue(values[0], field, name)
		if err != nil {
			return err
		}
		qs.Filter(`"`+field.Column+`" = ?`, value)
	}
	return nil
}

func coerceFilterValue(raw string, field *model.Field, name string) (any, error) {
	switch field.Kind {
	case model.KindBool:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, badRequestf("field filter error. '%s' is not a valid value for %s (boolean)", raw, name)
	case model.KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, badRequestf("field filter error. '%s' is not a valid value for %s (integer)", raw, name)
		}
		return n, nil
	default:
		return raw, nil
	}
}

// OrderingFilter handles order=<field>, order=-<field> and order=random.
type OrderingFilter struct{}

func (OrderingFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	orderBy := rctx.Request.URL.Query().Get("order")
	if orderBy == "" {
		return nil
	}
	if orderBy == "random" {
		if rctx.Request.URL.Query().Get("offset") != "" {
			return badRequestf("random ordering with offset is not supported")
		}
		qs.RandomOrder()
		return nil
	}

	name := strings.TrimPrefix(orderBy, "-")
	e := rctx.Endpoint
	if !e.availableDBFields()[name] || e.KnownQueryParameters[name] {
		return badRequestf("cannot order by '%s' (unknown field)", orderBy)
	}
	column := e.Model.Field(name).Column
	if strings.HasPrefix(orderBy, "-") {
		column = "-" + column
	}
	qs.OrderBy(column)
	return nil
}

// SearchFilter matches search terms against the model's search fields with
// ILIKE, combined per search_operator (and/or, default and).
type SearchFilter struct{}

func (SearchFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	query := rctx.Request.URL.Query().Get("search")
	if query == "" {
		return nil
	}
	m := rctx.Endpoint.Model
	if !m.Searchable() {
		return badRequestf("search is disabled")
	}

	operator := rctx.Request.URL.Query().Get("search_operator")
	switch operator {
	case "":
		operator = "and"
	case "and", "or":
	default:
		return badRequestf("search operator must be either 'and' or 'or'")
	}

	terms := strings.Fields(query)
	var termConds []string
	var args []any
	for _, term := range terms {
		fieldConds := make([]string, len(m.SearchFields))
		for i, col := range m.SearchFields {
			fieldConds[i] = `"` + col + `" ILIKE ?`
			args = append(args, "%"+escapeLike(term)+"%")
		}
		termConds = append(termConds, "("+strings.Join(fieldConds, " OR ")+")")
	}

	joiner := " AND "
	if operator == "or" {
		joiner = " OR "
	}
	qs.Filter("("+strings.Join(termConds, joiner)+")", args...)
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// ChildOfFilter restricts a page queryset to the children of one page.
type ChildOfFilter struct{}

func (ChildOfFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	raw := rctx.Request.URL.Query().Get("child_of")
	if raw == "" {
		return nil
	}
	parent, err := resolveFilterPage(rctx, raw, "child_of", "parent page doesn't exist")
	if err != nil {
		return err
	}
	rctx.childOfParent = parent
	qs.ChildOf(parent)
	return nil
}

// DescendantOfFilter restricts a page queryset to the descendants of one
// page. It cannot be combined with child_of.
type DescendantOfFilter struct{}

func (DescendantOfFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	raw := rctx.Request.URL.Query().Get("descendant_of")
	if raw == "" {
		return nil
	}
	if rctx.Request.URL.Query().Get("child_of") != "" {
		return badRequestf("filtering by descendant_of with child_of is not supported")
	}
	ancestor, err := resolveFilterPage(rctx, raw, "descendant_of", "ancestor page doesn't exist")
	if err != nil {
		return err
	}
	qs.DescendantOf(ancestor, false)
	return nil
}

// resolveFilterPage looks a tree-filter argument up within the endpoint's
// base queryset. "root" resolves through the endpoint's root page.
func resolveFilterPage(rctx *RequestContext, raw, param, missingMsg string) (model.Instance, error) {
	e := rctx.Endpoint

	if raw == "root" {
		if e.RootPage == nil {
			return nil, badRequestf("%s must be a positive integer", param)
		}
		root, err := e.RootPage(rctx)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, &BadRequestError{Msg: missingMsg}
		}
		return root, nil
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return nil, badRequestf("%s must be a positive integer", param)
	}

	base, err := e.baseQueryset(rctx)
	if err != nil {
		return nil, err
	}
	page, err := e.Store.Get(rctx.Request.Context(), base, id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, &BadRequestError{Msg: missingMsg}
	}
	return page, nil
}

// HasChildrenFilter filters pages on whether they have children.
type HasChildrenFilter struct{}

func (HasChildrenFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	switch rctx.Request.URL.Query().Get("has_children") {
	case "":
	case "true":
		qs.Filter(`"numchild" > ?`, 0)
	case "false":
		qs.Filter(`"numchild" = ?`, 0)
	default:
		return badRequestf("has_children must be 'true' or 'false'")
	}
	return nil
}

// ForExplorerFilter restricts the listing to pages the requesting user may
// explore. It only applies together with child_of.
type ForExplorerFilter struct{}

func (ForExplorerFilter) Apply(rctx *RequestContext, qs *model.Queryset) error {
	raw := rctx.Request.URL.Query().Get("for_explorer")
	if raw == "" {
		return nil
	}
	wanted, err := strconv.Atoi(raw)
	if err != nil || wanted == 0 {
		return nil
	}
	if rctx.childOfParent == nil {
		return badRequestf("filtering by for_explorer without child_of is not supported")
	}

	prefixes, all, err := rctx.Endpoint.Policy.ExplorablePathPrefixes(rctx.Request.Context(), rctx.User)
	if err != nil {
		return err
	}
	if all {
		return nil
	}
	qs.PathPrefixes(prefixes)
	return nil
}
