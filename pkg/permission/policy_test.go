package permission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torchbox-forks/wagtail-transfer/pkg/config"
	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

type fakeDB struct {
	rows []model.Instance
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) ([]model.Instance, error) {
	return f.rows, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Users = []config.UserConfig{
		{Username: "alice", Groups: []string{"editors"}},
		{Username: "root", Superuser: true},
	}
	cfg.Groups = []config.GroupConfig{
		{Name: "editors", Permissions: []string{"wagtailtransfer.can_import"}},
	}
	return &cfg
}

func TestUserFromRequestBasicAuth(t *testing.T) {
	p := NewPolicy(testConfig(), model.NewStore(&fakeDB{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), httputil.BasicAuthCtxKey, "alice")
	u, ok := p.UserFromRequest(req.WithContext(ctx))
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.HasPerm("wagtailtransfer.can_import"))
	assert.False(t, u.HasPerm("wagtailtransfer.can_export"))

	ctx = context.WithValue(req.Context(), httputil.BasicAuthCtxKey, "mallory")
	_, ok = p.UserFromRequest(req.WithContext(ctx))
	assert.False(t, ok)
}

func TestUserFromRequestOIDC(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.OIDC.UsernameClaim = ".preferred_username"
	p := NewPolicy(cfg, model.NewStore(&fakeDB{}, nil))

	introspection := &oidc.IntrospectionResponse{
		Active:   true,
		Username: "ignored",
		Claims:   map[string]any{"preferred_username": "alice"},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), httputil.OIDCUserCtxKey, introspection)
	u, ok := p.UserFromRequest(req.WithContext(ctx))
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
}

func TestSuperuserHasEverything(t *testing.T) {
	p := NewPolicy(testConfig(), model.NewStore(&fakeDB{}, nil))
	u, ok := p.user("root")
	require.True(t, ok)
	assert.True(t, u.HasPerm("anything.at_all"))

	_, all, err := p.ExplorablePathPrefixes(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, all)
}

func TestExplorablePathPrefixes(t *testing.T) {
	db := &fakeDB{rows: []model.Instance{{"path": "00010001"}, {"path": "00010002"}}}
	p := NewPolicy(testConfig(), model.NewStore(db, nil))

	u, _ := p.user("alice")
	prefixes, all, err := p.ExplorablePathPrefixes(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, []string{"00010001", "00010002"}, prefixes)

	root, err := p.ExplorableRootPath(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "0001", root)
}

func TestMiddleware(t *testing.T) {
	p := NewPolicy(testConfig(), model.NewStore(&fakeDB{}, nil))

	var captured *User
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"message": "Authentication credentials were not provided."}`, rr.Body.String())

	ctx := context.WithValue(req.Context(), httputil.BasicAuthCtxKey, "alice")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "alice", captured.Username)
}
