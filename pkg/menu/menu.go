// Package menu implements the admin menu: a named hook registry that
// features register menu items into, and a handler that returns the items
// visible to the requesting user.
package menu

import (
	"net/http"
	"sort"
	"sync"

	"github.com/torchbox-forks/wagtail-transfer/pkg/config"
	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/permission"
)

// RegisterMenuItemHook is the hook name menu item constructors attach to.
const RegisterMenuItemHook = "register_admin_menu_item"

// ImportPermission gates visibility of the content-import menu entry.
const ImportPermission = "wagtail_transfer.wagtailtransfer_can_import"

// MenuItem is one entry of the admin menu. IsShown, when set, decides
// per-user visibility.
type MenuItem struct {
	Label     string
	URL       string
	IconClass string
	Order     int
	IsShown   func(u *permission.User) bool
}

// Hooks is a registry of named hook functions.
type Hooks struct {
	mu    sync.RWMutex
	hooks map[string][]func() *MenuItem
}

func NewHooks() *Hooks {
	return &Hooks{hooks: make(map[string][]func() *MenuItem)}
}

// Register attaches a menu item constructor to a hook name.
func (h *Hooks) Register(name string, hook func() *MenuItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[name] = append(h.hooks[name], hook)
}

// Get returns the hooks registered under a name, in registration order.
func (h *Hooks) Get(name string) []func() *MenuItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]func() *MenuItem(nil), h.hooks[name]...)
}

// MenuItems runs the menu item hooks and returns the items visible to the
// user, sorted by order.
func (h *Hooks) MenuItems(u *permission.User) []*MenuItem {
	var items []*MenuItem
	for _, hook := range h.Get(RegisterMenuItemHook) {
		item := hook()
		if item == nil {
			continue
		}
		if item.IsShown != nil && !item.IsShown(u) {
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items
}

// TransferMenuItem builds the content-import menu entry. It is shown only
// when transfer sources are configured and the user may import.
func TransferMenuItem(cfg *config.Config) *MenuItem {
	return &MenuItem{
		Label:     "Import",
		URL:       "/admin/wagtail-transfer/choose/",
		IconClass: "icon icon-doc-empty-inverse",
		Order:     10000,
		IsShown: func(u *permission.User) bool {
			return len(cfg.Sources) > 0 && u.HasPerm(ImportPermission)
		},
	}
}

// Handler serves GET /menu/ with the items visible to the requesting user.
func Handler(hooks *Hooks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := permission.FromContext(r.Context())
		items := hooks.MenuItems(u)

		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			out = append(out, map[string]any{
				"label":     item.Label,
				"url":       item.URL,
				"classname": item.IconClass,
				"order":     item.Order,
			})
		}
		httputil.JSON(w, http.StatusOK, map[string]any{"items": out})
	}
}
