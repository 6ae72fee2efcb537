package http

import (
	"net/http"
	"time"

	"github.com/sanasol-ws/dualauth/pkg/httpx"
	"github.com/sanasol-ws/dualauth/pkg/sessionsdk"
)

// LivezHandler is the liveness probe: 200 whenever the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, sessionsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
