// Package server - HTTP boundary around the detection pipeline.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"log"
	"net/http"

	// Image decoders for the base64 payloads we accept.
	_ "image/jpeg"
	_ "image/png"

	"github.com/gorilla/mux"

	"github.com/grocer-eye/go-detect/detector"
)

// Detector is the pipeline the HTTP layer delegates to.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]detector.Detection, error)
}

// Server exposes POST /detect and GET /health. A nil detector means
// the model failed to initialize: /health reports it and /detect
// answers 503 until the operator fixes the model files and restarts.
type Server struct {
	router   *mux.Router
	detector Detector
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Items []detector.Detection `json:"items"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the server and its routes.
func New(d Detector) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		detector: d,
	}
	s.router.Use(corsMiddleware)
	s.router.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		ModelLoaded: s.detector != nil,
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "Model not loaded. Check model config and weights.",
		})
		return
	}

	// Tolerate malformed JSON the same way as a missing field: the
	// request simply carries no image.
	var req detectRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Image == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing 'image' (base64 JPEG)."})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid image."})
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid image."})
		return
	}

	items, err := s.detector.Detect(r.Context(), img)
	if err != nil {
		log.Printf("detect failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, detectResponse{Items: items})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encoding response: %v", err)
	}
}
