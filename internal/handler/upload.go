package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/api"
	"github.com/avolov/imgd/internal/imageproc"
	"github.com/avolov/imgd/internal/model"
	"github.com/avolov/imgd/internal/transcoder"
)

// UploadImage handles POST /images -- multipart file upload.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)

	if err := r.ParseMultipartForm(h.Config.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.TooLarge(w, fmt.Sprintf("upload exceeds %d bytes", h.Config.MaxUploadBytes))
			return
		}
		api.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		api.BadRequest(w, "missing required field: file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Internal(w, "failed to read upload")
		return
	}

	format, err := imageproc.Sniff(data)
	if err != nil {
		api.UnprocessableEntity(w, err.Error())
		return
	}

	width, height, err := imageproc.Bounds(data)
	if err != nil {
		api.UnprocessableEntity(w, "unreadable image: "+err.Error())
		return
	}
	if width > h.Config.MaxImageWidth || height > h.Config.MaxImageHeight {
		api.UnprocessableEntity(w, fmt.Sprintf("image %dx%d exceeds limit %dx%d",
			width, height, h.Config.MaxImageWidth, h.Config.MaxImageHeight))
		return
	}

	img := &model.Image{
		Identifier: uuid.New(),
		Format:     format,
		Computed:   false,
		ExpiresAt:  time.Now().UTC().Add(h.Config.DefaultTTL),
	}

	if err := h.DB.CreateImage(img); err != nil {
		api.Internal(w, "failed to create image record")
		return
	}

	err = h.Worker.Enqueue(transcoder.Job{
		Identifier: img.Identifier,
		Format:     img.Format,
		Data:       data,
	})
	if err != nil {
		// Without a compute job the row would stay uncomputed forever.
		_ = h.DB.DeleteImage(img.Identifier)
		api.Unavailable(w, "server busy, retry later")
		return
	}

	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(img))
}
