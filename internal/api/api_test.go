package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-pipeline/internal/api/handler"
	"property-pipeline/internal/importer"
	"property-pipeline/internal/model"
	"property-pipeline/internal/store"
)

const testSecret = "test-secret"

func newTestAPI(t *testing.T, datasetSize, batchSize int) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dataset := make([]model.SourceListing, datasetSize)
	for i := range dataset {
		dataset[i] = model.SourceListing{
			ID:           fmt.Sprintf("prop-%d", i),
			PropertyType: "house",
			Address: model.Address{
				Display: model.AddressDisplay{FullAddress: fmt.Sprintf("%d Test St, Carlton VIC 3053", i)},
			},
		}
	}

	coord := importer.NewCoordinator(st, st, dataset, batchSize)
	h := handler.NewImportHandler(coord, st, testSecret)
	return NewRouter(h), st
}

func doRequest(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func triggerReq(importID, secret string) *http.Request {
	raw, _ := json.Marshal(map[string]string{"importId": importID})
	req := httptest.NewRequest(http.MethodPost, "/api/trigger-import", bytes.NewReader(raw))
	req.Header.Set("X-Import-Secret", secret)
	return req
}

func TestStartImport(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	rec, body := doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Import process started", body["message"])
	assert.NotEmpty(t, body["importId"])
}

func TestTriggerImportToCompletion(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	_, body := doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	importID := body["importId"].(string)

	// First batch already ran at start; two triggers finish the job.
	rec, body := doRequest(t, router, triggerReq(importID, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Next batch triggered", body["message"])

	rec, body = doRequest(t, router, triggerReq(importID, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Import completed", body["message"])

	// Triggering a completed job stays completed.
	rec, body = doRequest(t, router, triggerReq(importID, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Import completed", body["message"])
}

func TestTriggerImportAuth(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	_, body := doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	importID := body["importId"].(string)

	rec, body := doRequest(t, router, triggerReq(importID, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestTriggerImportUnknownJob(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	rec, body := doRequest(t, router, triggerReq("does-not-exist", testSecret))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Import not found", body["error"])
}

func TestTriggerImportMissingID(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/trigger-import", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Import-Secret", testSecret)
	rec, body := doRequest(t, router, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "importId is required", body["error"])
}

func TestTriggerImportFailedJob(t *testing.T) {
	router, st := newTestAPI(t, 25, 10)

	_, body := doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	importID := body["importId"].(string)
	require.NoError(t, st.FailJob(importID, "boom"))

	rec, body := doRequest(t, router, triggerReq(importID, testSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Import previously failed", body["error"])
}

func TestImportProgress(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	rec, _ := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/import", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/import?importId=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body := doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	importID := body["importId"].(string)

	rec, body = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/import?importId="+importID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	progress := body["progress"].(map[string]any)
	assert.Equal(t, float64(10), progress["currentOffset"])
	assert.Equal(t, float64(25), progress["totalItems"])
	assert.Equal(t, model.StatusInProgress, progress["status"])
}

func TestListImports(t *testing.T) {
	router, _ := newTestAPI(t, 25, 10)

	doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))

	rec, body := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	imports := body["imports"].([]any)
	assert.Len(t, imports, 2)
}

func TestGetProperty(t *testing.T) {
	router, _ := newTestAPI(t, 5, 10)

	// Starting the import merges the whole five-item dataset in one batch.
	doRequest(t, router, httptest.NewRequest(http.MethodPost, "/api/import", nil))

	rec, body := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/properties/prop-0", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	property := body["property"].(map[string]any)
	assert.Equal(t, "prop-0", property["id"])
	assert.Equal(t, "house", property["propertyType"])

	rec, body = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/properties/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Property not found", body["error"])
}
