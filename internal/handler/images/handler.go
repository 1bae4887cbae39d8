package images

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/artvision/curator/backend/internal/storage/images"
	"github.com/artvision/curator/backend/pkg/utils"
)

// Handler serves uploaded artwork images.
type Handler struct {
	store *images.Store
}

// New creates the image handler.
func New(store *images.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers the image routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/images/{imageID}", h.handleGetImage)
}

func (h *Handler) handleGetImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.store.Get(chi.URLParam(r, "imageID"))
	if errors.Is(err, images.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load image")
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
