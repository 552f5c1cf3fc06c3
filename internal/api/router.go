package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"property-pipeline/internal/api/handler"
)

// NewRouter wires the import API routes.
func NewRouter(h *handler.ImportHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/api/import", h.StartImport).Methods(http.MethodPost)
	r.HandleFunc("/api/import", h.ImportProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/imports", h.ListImports).Methods(http.MethodGet)
	r.HandleFunc("/api/trigger-import", h.TriggerImport).Methods(http.MethodPost)
	r.HandleFunc("/api/properties/{id}", h.GetProperty).Methods(http.MethodGet)

	return r
}

// statusRecorder captures the status code for the request log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
