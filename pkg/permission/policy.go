// Package permission resolves the requesting user and scopes page access.
// Users and groups come from config; page grants come from the
// group-page-permission table, making a user's explorable set the union of
// the subtrees rooted at their groups' granted pages.
package permission

import (
	"context"
	"net/http"

	"github.com/torchbox-forks/wagtail-transfer/pkg/config"
	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"github.com/torchbox-forks/wagtail-transfer/pkg/util"
)

// User is a resolved requesting user with flattened permissions.
type User struct {
	Username  string
	Groups    []string
	Superuser bool
	perms     map[string]bool
}

// HasPerm reports whether the user holds the permission codename, e.g.
// "wagtailtransfer.can_import". Superusers hold everything.
func (u *User) HasPerm(codename string) bool {
	if u == nil {
		return false
	}
	return u.Superuser || u.perms[codename]
}

// Policy resolves users from requests and answers page-scoping questions.
type Policy struct {
	cfg   *config.Config
	store *model.Store
}

func NewPolicy(cfg *config.Config, store *model.Store) *Policy {
	return &Policy{cfg: cfg, store: store}
}

func (p *Policy) user(username string) (*User, bool) {
	uc, ok := p.cfg.User(username)
	if !ok {
		return nil, false
	}
	return &User{
		Username:  uc.Username,
		Groups:    uc.Groups,
		Superuser: uc.Superuser,
		perms:     p.cfg.GroupPermissions(uc.Groups),
	}, true
}

// UserFromRequest resolves the user an auth middleware identified: basic
// auth username, or the configured username claim of an introspected bearer
// token.
func (p *Policy) UserFromRequest(r *http.Request) (*User, bool) {
	if username, ok := httputil.BasicAuthUser(r); ok {
		return p.user(username)
	}
	if introspection, ok := httputil.OIDCUser(r); ok {
		if claimPath := p.cfg.Auth.OIDC.UsernameClaim; claimPath != "" {
			if username, err := util.ClaimString(introspection.Claims, claimPath); err == nil {
				return p.user(username)
			}
		}
		if introspection.Username != "" {
			return p.user(introspection.Username)
		}
	}
	return nil, false
}

// ExplorablePathPrefixes returns the materialized-path prefixes of the
// subtrees the user may explore. all is true for superusers, whose access
// is unrestricted.
func (p *Policy) ExplorablePathPrefixes(ctx context.Context, u *User) (prefixes []string, all bool, err error) {
	if u == nil {
		return nil, false, nil
	}
	if u.Superuser {
		return nil, true, nil
	}
	prefixes, err = p.store.GroupPagePaths(ctx, u.Groups)
	return prefixes, false, err
}

// ExplorableRootPath returns the path of the deepest page containing every
// explorable subtree, or "" when the user can explore nothing.
func (p *Policy) ExplorableRootPath(ctx context.Context, u *User) (string, error) {
	prefixes, all, err := p.ExplorablePathPrefixes(ctx, u)
	if err != nil {
		return "", err
	}
	if all {
		root, err := p.store.Root(ctx)
		if err != nil {
			return "", err
		}
		return root.Str("path"), nil
	}
	return model.CommonAncestorPath(prefixes), nil
}

// FromContext returns the user stored by Middleware.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(httputil.UserCtxKey).(*User)
	return u
}

// Middleware resolves the user once per request and stores it in the
// context. Unresolvable requests get a 403, matching the behavior of an
// admin API that requires an active session.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := p.UserFromRequest(r)
		if !ok {
			httputil.Message(w, http.StatusForbidden, "Authentication credentials were not provided.")
			return
		}
		ctx := context.WithValue(r.Context(), httputil.UserCtxKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
