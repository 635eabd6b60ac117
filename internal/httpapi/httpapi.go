// Package httpapi binds pkg/service.Facade to the abstract RPC surface
// over plain net/http and newline-delimited JSON, in the same
// handler-per-route, writeJSON/writeError style used by other console
// servers in this codebase's lineage. No RPC framework is wired for
// this: the domain stack has no gRPC/Thrift dependency to reuse, so a
// stdlib HTTP binding is the smallest thing that lets cmd/edlctl act as
// a real client of a running cmd/edlengine (see DESIGN.md).
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/events"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/service"
)

// Handler mounts the RPC surface onto an *http.ServeMux.
type Handler struct {
	facade *service.Facade
	logger *slog.Logger
}

// New returns a Handler backed by facade.
func New(facade *service.Facade, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{facade: facade, logger: logger}
}

// Mount registers every route on mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/v1/edl", h.handleEdl)
	mux.HandleFunc("/v1/probe", h.handleProbe)
	mux.HandleFunc("/v1/render", h.handleRender)
	mux.HandleFunc("/v1/subscribe", h.handleSubscribe)
}

// handleEdl dispatches by method: GET returns the currently loaded
// snapshot's summary, POST installs a new one (see handleUpdateEdl).
func (h *Handler) handleEdl(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.handleGetEdl(w, r)
		return
	}
	h.handleUpdateEdl(w, r)
}

type loadedEdlResponse struct {
	Loaded     bool   `json:"loaded"`
	EdlID      string `json:"edl_id,omitempty"`
	Revision   string `json:"revision,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	TrackCount int    `json:"track_count,omitempty"`
	ClipCount  int    `json:"clip_count,omitempty"`
}

func (h *Handler) handleGetEdl(w http.ResponseWriter, r *http.Request) {
	loaded, ok := h.facade.CurrentEdl()
	if !ok {
		writeJSON(w, http.StatusOK, loadedEdlResponse{Loaded: false})
		return
	}
	writeJSON(w, http.StatusOK, loadedEdlResponse{
		Loaded:     true,
		EdlID:      loaded.EdlID,
		Revision:   loaded.Revision,
		SampleRate: loaded.SampleRate,
		TrackCount: loaded.TrackCount,
		ClipCount:  loaded.ClipCount,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the wire shape for a failed request. For domain
// failures ErrorCode carries pkg/edl.Kind's string value so clients can
// branch on it without parsing prose.
type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeEdlError(w http.ResponseWriter, status int, err error) {
	var kind string
	if ee, ok := err.(*edl.Error); ok {
		kind = string(ee.Kind)
	} else {
		kind = "INTERNAL"
	}
	writeJSON(w, status, errorResponse{ErrorCode: kind, Message: err.Error()})
}

type updateEdlResponse struct {
	EdlID      string `json:"edl_id"`
	Revision   string `json:"revision"`
	TrackCount int    `json:"track_count"`
	ClipCount  int    `json:"clip_count"`
}

// handleUpdateEdl handles POST /v1/edl?replace=true, body is an EDL
// document in wire JSON form (pkg/edl.ParseDocument's format).
func (h *Handler) handleUpdateEdl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{ErrorCode: "METHOD_NOT_ALLOWED", Message: "POST only"})
		return
	}
	body, err := readAll(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorCode: "BAD_REQUEST", Message: err.Error()})
		return
	}
	candidate, err := edl.ParseDocument(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorCode: "BAD_REQUEST", Message: err.Error()})
		return
	}
	replace := r.URL.Query().Get("replace") == "true"
	result, err := h.facade.UpdateEdl(candidate, replace)
	if err != nil {
		writeEdlError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, updateEdlResponse{
		EdlID:      result.EdlID,
		Revision:   result.Revision,
		TrackCount: result.TrackCount,
		ClipCount:  result.ClipCount,
	})
}

type probeRequest struct {
	Path string `json:"path"`
}

type probeResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	FileInfo *fileInfoWire `json:"file_info,omitempty"`
}

type fileInfoWire struct {
	Path            string  `json:"path"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
}

// handleProbe handles POST /v1/probe, mirroring LoadFile(path).
func (h *Handler) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{ErrorCode: "METHOD_NOT_ALLOWED", Message: "POST only"})
		return
	}
	var req probeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorCode: "BAD_REQUEST", Message: err.Error()})
		return
	}
	info, err := service.LoadFile(req.Path)
	if err != nil {
		writeJSON(w, http.StatusOK, probeResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, probeResponse{
		Success: true,
		Message: "ok",
		FileInfo: &fileInfoWire{
			Path:            info.Path,
			SampleRate:      info.SampleRate,
			Channels:        info.Channels,
			DurationSeconds: info.DurationSeconds,
			SizeBytes:       info.SizeBytes,
		},
	})
}

type renderRequest struct {
	EdlID           string `json:"edl_id"`
	StartSamples    int64  `json:"start_samples"`
	DurationSamples int64  `json:"duration_samples"`
	OutPath         string `json:"out_path"`
	BitDepth        int    `json:"bit_depth"`
}

// handleRender handles POST /v1/render, streaming one JSON-encoded
// EngineEvent per line until a terminal Complete or EdlError is written.
func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{ErrorCode: "METHOD_NOT_ALLOWED", Message: "POST only"})
		return
	}
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorCode: "BAD_REQUEST", Message: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	emit := func(e events.EngineEvent) {
		_ = enc.Encode(e)
		if flusher != nil {
			flusher.Flush()
		}
	}

	rng := edl.TimeRange{StartSamples: req.StartSamples, DurationSamples: req.DurationSamples}
	if err := h.facade.RenderEdlWindow(r.Context(), req.EdlID, rng, req.OutPath, req.BitDepth, emit); err != nil {
		h.logger.WarnContext(r.Context(), "render failed", "edl_id", req.EdlID, "error", err)
	}
}

// handleSubscribe handles GET /v1/subscribe, streaming one JSON-encoded
// EngineEvent per line for the life of the connection.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{ErrorCode: "METHOD_NOT_ALLOWED", Message: "GET only"})
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	h.facade.Subscribe(r.Context(), func(e events.EngineEvent) {
		_ = enc.Encode(e)
		if flusher != nil {
			flusher.Flush()
		}
	})
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
