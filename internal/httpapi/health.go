package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/ivlev/daybyday/internal/httpkit"
)

// Health reports liveness. With ?deep=true every registered check runs.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "ok",
		"service": "daybyday",
	}

	if r.URL.Query().Get("deep") == "true" && len(h.checks) > 0 {
		checks := make(map[string]any, len(h.checks))
		for name, check := range h.checks {
			res := runCheck(r.Context(), check)
			if res["status"] != "ok" {
				health["status"] = "degraded"
			}
			checks[name] = res
		}
		health["checks"] = checks
		if health["status"] != "ok" {
			h.log.FromContext(r.Context()).Warn("health check degraded", "checks", checks)
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func runCheck(ctx context.Context, check Check) map[string]any {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res := map[string]any{"status": "ok"}
	if err := check(ctx); err != nil {
		res["status"] = "error"
		res["error"] = err.Error()
	}
	res["latency_ms"] = time.Since(start).Milliseconds()
	return res
}
