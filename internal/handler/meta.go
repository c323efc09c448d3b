package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/api"
	"github.com/avolov/imgd/internal/model"
)

// GetImageMeta handles GET /images/{image_id}/meta -- returns every
// stored row for the identifier.
func (h *Handler) GetImageMeta(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "image_id"))
	if err != nil {
		api.BadRequest(w, "invalid image identifier")
		return
	}

	formats, err := h.DB.ListFormats(id)
	if err != nil {
		api.Internal(w, "failed to list formats")
		return
	}
	if len(formats) == 0 {
		api.NotFound(w, "image not found")
		return
	}

	variants := make([]*model.Image, 0, len(formats))
	for _, f := range formats {
		img, err := h.DB.GetImage(id, f)
		if err != nil {
			continue
		}
		variants = append(variants, img)
	}

	result := map[string]interface{}{
		"image_identifier": id,
		"variants":         variants,
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(result))
}

// DeleteImage handles DELETE /images/{image_id} -- removes every row,
// blob and cache entry for the identifier.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "image_id"))
	if err != nil {
		api.BadRequest(w, "invalid image identifier")
		return
	}

	if err := h.DB.DeleteImage(id); err != nil {
		api.NotFound(w, "image not found")
		return
	}

	// Blob and cache cleanup is best-effort.
	_ = h.Store.Delete(r.Context(), id)
	h.Cache.InvalidateImage(r.Context(), id)

	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(struct{}{}))
}
