package api

import (
	"net/http"

	"github.com/ayusman/mudra/internal/feedback"
)

// AssetsHandler lists the available sounds and images.
type AssetsHandler struct {
	assets *feedback.Assets
}

// NewAssetsHandler creates a new AssetsHandler.
func NewAssetsHandler(a *feedback.Assets) *AssetsHandler {
	return &AssetsHandler{assets: a}
}

type assetsResponse struct {
	Sounds []string `json:"sounds"`
	Images []string `json:"images"`
}

// List handles GET /api/assets.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assetsResponse{
		Sounds: h.assets.Sounds(),
		Images: h.assets.Images(),
	})
}

// Rescan handles POST /api/assets/rescan.
func (h *AssetsHandler) Rescan(w http.ResponseWriter, r *http.Request) {
	if err := h.assets.Discover(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan assets")
		return
	}
	h.List(w, r)
}
