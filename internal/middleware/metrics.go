package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

type httpObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics records request duration and status per route. The login and
// reissue filters answer on paths with no registered route, so those are
// passed in as filterPaths to keep their own label; every other unmatched
// path is folded into one label.
func Metrics(observer httpObserver, filterPaths ...string) gin.HandlerFunc {
	known := make(map[string]struct{}, len(filterPaths))
	for _, p := range filterPaths {
		known[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
			if _, ok := known[c.Request.URL.Path]; ok {
				route = c.Request.URL.Path
			}
		}
		observer.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
