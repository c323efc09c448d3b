package handler

import (
	"net/http"

	"github.com/avolov/imgd/internal/api"
)

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.DB.CountImages()
	if err != nil {
		api.Internal(w, "failed to count images")
		return
	}
	computed, err := h.DB.CountComputed()
	if err != nil {
		api.Internal(w, "failed to count images")
		return
	}

	result := map[string]interface{}{
		"count": map[string]interface{}{
			"current":  total,
			"computed": computed,
			"allowed":  h.Config.ImageAllowance,
		},
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(result))
}
