package api

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

// HealthResponse reports process liveness. It checks no dependencies; a
// process able to serve it counts as healthy.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
	})
}
