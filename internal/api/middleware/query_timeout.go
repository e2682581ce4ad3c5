package middleware

import (
	"context"
	"net/http"
	"time"
)

// QueryTimeout bounds each request with a context deadline. Expiry cancels
// in-flight retrieval legs and provider calls; the pipeline's degrade paths
// turn that into a partial or default answer rather than a hung request.
func QueryTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
