package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/api"
	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/imageformat"
	"github.com/avolov/imgd/internal/imageproc"
	"github.com/avolov/imgd/internal/model"
)

// ServeImage handles GET /images/{image_id}. Query parameters format,
// width and height select a transcoded rendering; with none the stored
// bytes are served as-is. Empty parameter values are treated as unset.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "image_id"))
	if err != nil {
		api.BadRequest(w, "invalid image identifier")
		return
	}

	q := r.URL.Query()

	var target imageformat.Format
	haveFormat := false
	if s := q.Get("format"); s != "" {
		target, err = imageformat.Parse(s)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		haveFormat = true
	}

	width, err := parseDimension(q.Get("width"))
	if err != nil {
		api.BadRequest(w, "invalid width")
		return
	}
	height, err := parseDimension(q.Get("height"))
	if err != nil {
		api.BadRequest(w, "invalid height")
		return
	}

	var img *model.Image
	if haveFormat {
		img, err = h.DB.GetImage(id, target)
		if errors.Is(err, database.ErrNotFound) {
			h.serveMaterialized(w, r, id, target, width, height)
			return
		}
	} else {
		img, err = h.DB.GetAnyComputed(id)
		if errors.Is(err, database.ErrNotFound) {
			h.writeAbsent(w, id)
			return
		}
		target = img.Format
	}
	if err != nil {
		api.Internal(w, "failed to load image record")
		return
	}
	if !img.Computed {
		api.Conflict(w, "image not computed yet")
		return
	}

	// Raw passthrough when the stored bytes already satisfy the request.
	transform := width > 0 || height > 0 || target != img.Format

	if !transform {
		rc, err := h.Store.Retrieve(ctx, id, img.Format)
		if err != nil {
			api.NotFound(w, "image blob not found")
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			api.Internal(w, "failed to read image")
			return
		}
		writeImage(w, data, img.Format)
		return
	}

	if !target.Encodable() {
		api.UnprocessableEntity(w, "cannot encode format "+target.String())
		return
	}

	key := cache.RenderKey(id, target, width, height)
	if data, ok := h.Cache.GetRendered(ctx, key); ok {
		writeImage(w, data, target)
		return
	}

	rc, err := h.Store.Retrieve(ctx, id, img.Format)
	if err != nil {
		api.NotFound(w, "image blob not found")
		return
	}
	src, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		api.Internal(w, "failed to read image")
		return
	}

	out, err := imageproc.Transcode(src, target, width, height)
	if err != nil {
		api.Internal(w, "failed to transcode image")
		return
	}

	h.Cache.SetRendered(ctx, key, out, renderTTL(img, h.Config.DefaultTTL))
	writeImage(w, out, target)
}

// serveMaterialized handles a request for a format the image has no row
// for yet: an existing variant is transcoded and recorded at full size,
// and the response is resized to the requested dimensions.
func (h *Handler) serveMaterialized(w http.ResponseWriter, r *http.Request, id uuid.UUID, target imageformat.Format, width, height int) {
	if !target.Encodable() {
		api.UnprocessableEntity(w, "cannot encode format "+target.String())
		return
	}

	out, err := h.Worker.MaterializeFormat(r.Context(), id, target)
	if errors.Is(err, database.ErrNotFound) {
		h.writeAbsent(w, id)
		return
	}
	if err != nil {
		api.Internal(w, "failed to transcode image")
		return
	}

	if width > 0 || height > 0 {
		out, err = imageproc.Transcode(out, target, width, height)
		if err != nil {
			api.Internal(w, "failed to transcode image")
			return
		}
	}

	writeImage(w, out, target)
}

// writeAbsent distinguishes a record that does not exist from one that is
// still being computed.
func (h *Handler) writeAbsent(w http.ResponseWriter, id uuid.UUID) {
	formats, err := h.DB.ListFormats(id)
	if err == nil && len(formats) > 0 {
		api.Conflict(w, "image not computed yet")
		return
	}
	api.NotFound(w, "image not found")
}

// renderTTL caps the cache lifetime of rendered bytes at the record expiry.
func renderTTL(img *model.Image, def time.Duration) time.Duration {
	ttl := time.Until(img.ExpiresAt)
	if ttl > def {
		ttl = def
	}
	return ttl
}

func parseDimension(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid dimension")
	}
	return n, nil
}

func writeImage(w http.ResponseWriter, data []byte, format imageformat.Format) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("failed to write image response", "error", err)
	}
}
