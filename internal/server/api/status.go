package api

import (
	"net/http"

	"github.com/ayusman/mudra/internal/display"
	"github.com/ayusman/mudra/internal/trigger"
)

// Detector is the part of a detection session the API controls.
type Detector interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	Running() bool
	LastEvent() (trigger.Event, bool)
}

// Display exposes the current display state.
type Display interface {
	Snapshot() display.Snapshot
}

// StatusHandler serves the detection status and the enabled toggle.
type StatusHandler struct {
	detector Detector
	display  Display
}

// NewStatusHandler creates a StatusHandler. Either collaborator may be nil.
func NewStatusHandler(d Detector, disp Display) *StatusHandler {
	return &StatusHandler{detector: d, display: disp}
}

type statusResponse struct {
	Status    string         `json:"status"`
	Image     *display.Image `json:"image,omitempty"`
	Enabled   bool           `json:"enabled"`
	Running   bool           `json:"running"`
	LastEvent *trigger.Event `json:"lastEvent,omitempty"`
}

type detectionRequest struct {
	Enabled *bool `json:"enabled"`
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// SetDetection handles PUT /api/detection with a body of {"enabled": bool}.
func (h *StatusHandler) SetDetection(w http.ResponseWriter, r *http.Request) {
	if h.detector == nil {
		writeError(w, http.StatusServiceUnavailable, "Detection is not running")
		return
	}

	var req detectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	h.detector.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *StatusHandler) snapshot() statusResponse {
	var resp statusResponse
	if h.display != nil {
		s := h.display.Snapshot()
		resp.Status = s.Status
		resp.Image = s.Image
	}
	if h.detector != nil {
		resp.Enabled = h.detector.IsEnabled()
		resp.Running = h.detector.Running()
		if ev, ok := h.detector.LastEvent(); ok {
			resp.LastEvent = &ev
		}
	}
	return resp
}
