// Package server - JSON HTTP API for traffic light detection.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nvr-ai/go-trafficlight/detector"
	"github.com/nvr-ai/go-trafficlight/models/trafficlight"
	"github.com/nvr-ai/go-trafficlight/profiler"
	"github.com/nvr-ai/go-trafficlight/signal"
	"github.com/nvr-ai/go-trafficlight/util"
	"github.com/pkg/errors"
)

// MaxUploadBytes caps request bodies.
const MaxUploadBytes = 50 << 20

// Detector is the part of detector.Detector the server needs.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (detector.Frame, error)
}

// Server serves detection requests.
type Server struct {
	det      Detector
	log      logs.Log
	profiler *profiler.RuntimeProfiler
}

// DetectResponse is the body of a successful detection.
type DetectResponse struct {
	RequestID  string                   `json:"request_id"`
	Detections []trafficlight.Detection `json:"detections"`
	State      signal.State             `json:"state"`
	Timings    Timings                  `json:"timings"`
}

// Timings are per-request durations in milliseconds.
type Timings struct {
	DecodeMS float64 `json:"decode_ms"`
	DetectMS float64 `json:"detect_ms"`
	TotalMS  float64 `json:"total_ms"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// New creates a server. prof may be nil, in which case /metrics reports nothing.
func New(det Detector, log logs.Log, prof *profiler.RuntimeProfiler) *Server {
	return &Server{det: det, log: log, profiler: prof}
}

// Handler returns the routed HTTP handler.
//
// Routes:
//   - POST /v1/detect: multipart field "file", JSON {"image": base64} or a raw image body.
//   - GET /healthz
//   - GET /metrics: stage timing summaries.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Infof("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	raw, err := readImageBytes(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.sendError(w, requestID, "invalid_request", err.Error(), status)
		return
	}

	img, err := util.DecodeImage(raw)
	decoded := time.Now()
	if err != nil {
		s.sendError(w, requestID, "invalid_image", "failed to decode image", http.StatusBadRequest)
		return
	}

	frame, err := s.det.Detect(r.Context(), img)
	if err != nil {
		var shapeErr *trafficlight.ShapeError
		var lookupErr *trafficlight.LabelLookupError
		switch {
		case errors.As(err, &shapeErr), errors.As(err, &lookupErr):
			s.sendError(w, requestID, "model_output", err.Error(), http.StatusUnprocessableEntity)
		default:
			s.sendError(w, requestID, "processing_error", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	done := time.Now()
	resp := DetectResponse{
		RequestID:  requestID,
		Detections: frame.Detections,
		State:      frame.State,
		Timings: Timings{
			DecodeMS: ms(decoded.Sub(start)),
			DetectMS: ms(done.Sub(decoded)),
			TotalMS:  ms(done.Sub(start)),
		},
	}
	s.log.Infof("RequestID: %s - %d detections, %v, %.1fms", requestID, len(frame.Detections), frame.State, resp.Timings.TotalMS)
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	summary := s.profiler.Summary()
	if summary == nil {
		summary = []profiler.OperationSummary{}
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"operations": summary})
}

// readImageBytes accepts multipart, JSON base64 or raw bodies.
func readImageBytes(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	case "application/json":
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		if req.Image == "" {
			return nil, errors.New("image is required")
		}
		return base64.StdEncoding.DecodeString(req.Image)
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("empty request body")
		}
		return data, nil
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warnf("Failed to write response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, requestID, code, message string, status int) {
	if status >= http.StatusInternalServerError {
		s.log.Errorf("RequestID: %s - %s: %s", requestID, code, message)
	}
	s.sendJSON(w, status, ErrorResponse{RequestID: requestID, Code: code, Message: message})
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
