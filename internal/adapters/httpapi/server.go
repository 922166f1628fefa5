package httpapi

import (
	"net/http"
)

// NewMux mounts the pantry API, the metrics handler at /metrics (skipped when
// nil) and a health check at /healthz.
func NewMux(h *Handler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(listPath, h)
	mux.Handle(listPath+"/", h)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	return mux
}
