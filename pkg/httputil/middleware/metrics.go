package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/torchbox-forks/wagtail-transfer/pkg/metrics"
)

// Metrics records a request counter and duration histogram per method/route.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		route := normalizeRoute(r.URL.Path)
		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.StatusCode)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// normalizeRoute collapses object identifiers and model paths so the route
// label stays low-cardinality: /api/admin/pages/42/ -> /api/admin/pages/{id}/
func normalizeRoute(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if isAllDigits(seg) {
			segments[i] = "{id}"
		} else if strings.Contains(seg, ".") {
			segments[i] = "{model}"
		}
	}
	return strings.Join(segments, "/")
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
