package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Runs every dependency check (database, rate limit backend) and returns 503 if any fails.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	HealthResponse	"status, uptime, version, checks"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make(map[string]string, len(names))
		status, code := "ok", http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				slogx.FromContext(ctx).Warn("readiness check failed", "check", name, "error", err)
				results[name] = "error"
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  results,
		})
	}
}
