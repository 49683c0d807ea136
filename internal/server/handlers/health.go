package handlers

import (
	"net/http"
)

// Health reports whether the backing table is reachable. It always answers
// 200 so that load balancers keep routing while storage is degraded.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.provider.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "storage ping failed", "error", err)
		status = "degraded"
	}
	h.writeSuccess(w, map[string]string{"storage": status})
}
