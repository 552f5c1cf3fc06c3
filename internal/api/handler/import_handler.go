package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"property-pipeline/internal/importer"
	"property-pipeline/internal/store"
)

// ImportHandler exposes the batch import coordinator over HTTP.
type ImportHandler struct {
	coord  *importer.Coordinator
	store  *store.Store
	secret string
}

func NewImportHandler(coord *importer.Coordinator, st *store.Store, secret string) *ImportHandler {
	return &ImportHandler{coord: coord, store: st, secret: secret}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// StartImport creates a new import job and runs its first batch.
// POST /api/import
func (h *ImportHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	res, err := h.coord.StartImport(r.Context())
	if err != nil {
		log.Printf("failed to start import: %v", err)
		fail(w, http.StatusInternalServerError, "failed to start import")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Import process started",
		"importId": res.Job.ID,
	})
}

// TriggerImport advances an existing job by one batch. The route is meant
// for self-calls, so it is guarded by a shared secret.
// POST /api/trigger-import
func (h *ImportHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get("X-Import-Secret") != h.secret {
		fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body struct {
		ImportID string `json:"importId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ImportID == "" {
		fail(w, http.StatusBadRequest, "importId is required")
		return
	}

	res, err := h.coord.Advance(r.Context(), body.ImportID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrJobNotFound):
			fail(w, http.StatusNotFound, "Import not found")
		case errors.Is(err, importer.ErrJobFailed):
			fail(w, http.StatusBadRequest, "Import previously failed")
		default:
			log.Printf("failed to advance import %s: %v", body.ImportID, err)
			fail(w, http.StatusInternalServerError, "failed to process batch")
		}
		return
	}

	message := "Next batch triggered"
	if res.Done {
		message = "Import completed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  message,
		"importId": res.Job.ID,
	})
}

// ImportProgress reports the cursor of one job.
// GET /api/import?importId=...
func (h *ImportHandler) ImportProgress(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("importId")
	if id == "" {
		fail(w, http.StatusBadRequest, "importId is required")
		return
	}

	job, err := h.store.GetJob(id)
	if errors.Is(err, store.ErrJobNotFound) {
		fail(w, http.StatusNotFound, "Import not found")
		return
	}
	if err != nil {
		log.Printf("failed to load import %s: %v", id, err)
		fail(w, http.StatusInternalServerError, "failed to load import")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"progress": map[string]any{
			"currentOffset": job.CurrentOffset,
			"totalItems":    job.TotalItems,
			"status":        job.Status,
			"error":         job.Error,
		},
	})
}

// ListImports returns every import job, newest first.
// GET /api/imports
func (h *ImportHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs()
	if err != nil {
		log.Printf("failed to list imports: %v", err)
		fail(w, http.StatusInternalServerError, "failed to list imports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"imports": jobs,
	})
}

// GetProperty returns one stored property with its related rows.
// GET /api/properties/{id}
func (h *ImportHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := h.store.GetPropertyDetail(id)
	if errors.Is(err, sql.ErrNoRows) {
		fail(w, http.StatusNotFound, "Property not found")
		return
	}
	if err != nil {
		log.Printf("failed to load property %s: %v", id, err)
		fail(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"property": detail,
	})
}
