package generate

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxRequestBytes = 20 << 20

// Response is the success body of the endpoint.
type Response struct {
	HTML string `json:"html"`
}

// ErrorResponse is the failure body of the endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RegisterRoutes mounts POST /api/generate.
func RegisterRoutes(r chi.Router, gen Generator) {
	r.Post("/api/generate", Handler(gen))
}

// Handler serves generation requests. The body must be declared as JSON
// and carry an image.
func Handler(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Content-Type must be application/json"})
			return
		}

		var req Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
			return
		}
		if req.Image == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No image provided"})
			return
		}

		html, err := gen.Generate(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, Response{HTML: html})
		case errors.Is(err, ErrNoImage):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No image provided"})
		case errors.Is(err, ErrMissingCredentials):
			log.Printf("generate: %v", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrMissingCredentials.Error()})
		default:
			log.Printf("generate: %v", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to generate UI",
				Details: err.Error(),
			})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
