package handler

import (
	"net/http"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/response"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/cache"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
)

// Health reports database and cache connectivity.
func Health(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := ca.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
