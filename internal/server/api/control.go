package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/session"
)

// Controller drives the live session. *app.App implements it.
type Controller interface {
	Status() session.Status
	NewSession() (session.Status, error)
	PickPoint(p calibration.Point, moveTo *calibration.Point) (session.Status, error)
	ResetPoints() (session.Status, error)
	FinishCalibration(distance calibration.Distance) (session.Status, error)
	Calibrate(referencePercent float64, distance calibration.Distance) (session.Status, error)
	SkipCalibration() (session.Status, error)
	StartRecording() (session.Status, error)
	StopRecording() (session.Status, error)
	Export(name string) (string, error)
	Discard() (session.Status, error)
}

// ControlHandler exposes calibration and recording of the live session.
type ControlHandler struct {
	ctrl Controller
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(ctrl Controller) *ControlHandler {
	return &ControlHandler{ctrl: ctrl}
}

type pickRequest struct {
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
	MoveTo *calibration.Point `json:"move_to,omitempty"`
}

type distanceRequest struct {
	ReferencePercent float64 `json:"reference_percent"`
	Distance         float64 `json:"distance"`
	Unit             string  `json:"unit"`
}

type exportRequest struct {
	FileName string `json:"file_name"`
}

type exportResponse struct {
	Path   string         `json:"path"`
	Status session.Status `json:"status"`
}

// ServeHTTP routes the live session endpoints:
//
//	GET    /api/status
//	GET    /api/calibration
//	POST   /api/calibration
//	POST   /api/calibration/points
//	DELETE /api/calibration/points
//	POST   /api/calibration/finish
//	POST   /api/calibration/skip
//	POST   /api/recording/start
//	POST   /api/recording/stop
//	POST   /api/recording/export
//	POST   /api/recording/discard
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/")

	switch path {
	case "status", "calibration":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.ctrl.Status())
		case http.MethodPost:
			if path != "calibration" {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.calibrate(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "calibration/points":
		switch r.Method {
		case http.MethodPost:
			h.pick(w, r)
		case http.MethodDelete:
			h.respond(w, http.StatusOK)(h.ctrl.ResetPoints())
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "calibration/finish":
		if !requirePost(w, r) {
			return
		}
		h.finish(w, r)
	case "calibration/skip":
		if !requirePost(w, r) {
			return
		}
		h.respond(w, http.StatusOK)(h.ctrl.SkipCalibration())
	case "recording/start":
		if !requirePost(w, r) {
			return
		}
		h.respond(w, http.StatusOK)(h.ctrl.StartRecording())
	case "recording/stop":
		if !requirePost(w, r) {
			return
		}
		h.respond(w, http.StatusOK)(h.ctrl.StopRecording())
	case "recording/export":
		if !requirePost(w, r) {
			return
		}
		h.export(w, r)
	case "recording/discard":
		if !requirePost(w, r) {
			return
		}
		h.respond(w, http.StatusOK)(h.ctrl.Discard())
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// respond returns a writer for a (Status, error) pair.
func (h *ControlHandler) respond(w http.ResponseWriter, code int) func(session.Status, error) {
	return func(st session.Status, err error) {
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, code, st)
	}
}

func (h *ControlHandler) pick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.respond(w, http.StatusOK)(h.ctrl.PickPoint(calibration.Point{X: req.X, Y: req.Y}, req.MoveTo))
}

func decodeDistance(w http.ResponseWriter, r *http.Request) (distanceRequest, calibration.Distance, bool) {
	var req distanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return req, calibration.Distance{}, false
	}
	unit, err := calibration.ParseUnit(req.Unit)
	if err != nil {
		writeErr(w, err)
		return req, calibration.Distance{}, false
	}
	return req, calibration.Distance{Value: req.Distance, Unit: unit}, true
}

func (h *ControlHandler) finish(w http.ResponseWriter, r *http.Request) {
	_, d, ok := decodeDistance(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.ctrl.FinishCalibration(d))
}

func (h *ControlHandler) calibrate(w http.ResponseWriter, r *http.Request) {
	req, d, ok := decodeDistance(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.ctrl.Calibrate(req.ReferencePercent, d))
}

func (h *ControlHandler) export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	path, err := h.ctrl.Export(req.FileName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse{Path: path, Status: h.ctrl.Status()})
}
