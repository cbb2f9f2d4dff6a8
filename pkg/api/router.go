package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
)

// Router mounts endpoints under a base path and generates the listing and
// detail URLs embedded in serialized output.
type Router struct {
	base           string
	endpoints      []*Endpoint
	modelEndpoints map[string]*Endpoint
}

func NewRouter(base string) *Router {
	return &Router{
		base:           strings.TrimSuffix(base, "/"),
		modelEndpoints: make(map[string]*Endpoint),
	}
}

// Register adds an endpoint. The first endpoint registered for a model
// serves as that model's nested serializer source.
func (rt *Router) Register(e *Endpoint) {
	e.router = rt
	rt.endpoints = append(rt.endpoints, e)
	key := strings.ToLower(e.Model.Label)
	if _, exists := rt.modelEndpoints[key]; !exists {
		rt.modelEndpoints[key] = e
	}
}

// EndpointForModel returns the endpoint serving the model, or nil.
func (rt *Router) EndpointForModel(label string) *Endpoint {
	return rt.modelEndpoints[strings.ToLower(label)]
}

// ListingURL is the path of an endpoint's listing view.
func (rt *Router) ListingURL(e *Endpoint) string {
	return fmt.Sprintf("%s/%s/", rt.base, e.Name)
}

// DetailURL is the path of one object's detail view.
func (rt *Router) DetailURL(e *Endpoint, id int) string {
	return fmt.Sprintf("%s/%s/%d/", rt.base, e.Name, id)
}

// Mount registers the endpoint handlers on the HTTP router.
func (rt *Router) Mount(hr *httputil.Router) {
	for _, e := range rt.endpoints {
		prefix := fmt.Sprintf("%s/%s", rt.base, e.Name)
		hr.Handle("GET "+prefix+"/{$}", http.HandlerFunc(e.ListingView))
		hr.Handle("GET "+prefix+"/find/{$}", http.HandlerFunc(e.FindView))
		hr.Handle("GET "+prefix+"/{id}/{$}", http.HandlerFunc(e.DetailView))
	}
}
