package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/internal/testkit"
)

func newTestServer(t *testing.T) (*Server, *testkit.TestKit) {
	t.Helper()
	kit := testkit.NewTestKit()
	server := NewServer(kit.LedgerReaderAdapter(), gin.TestMode)
	return server, kit
}

func seedRun(t *testing.T, kit *testkit.TestKit, runID core.RunID) {
	t.Helper()
	ctx := context.Background()
	ledger := kit.LedgerAdapter()

	manifest := &resilience.RunManifest{
		RunID:     runID,
		Site:      "serengeti",
		Seed:      42,
		CreatedAt: core.Now(),
	}
	if err := ledger.StoreArtifact(ctx, runID, core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactRunManifest,
		Payload:   manifest,
		CreatedAt: core.Now(),
	}); err != nil {
		t.Fatalf("Failed to store manifest: %v", err)
	}

	analysis := &resilience.VariableAnalysis{Variable: "offset50"}
	if err := ledger.StoreArtifact(ctx, runID, core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactProcessedSeries,
		Payload:   analysis,
		CreatedAt: core.Now(),
	}); err != nil {
		t.Fatalf("Failed to store processed series: %v", err)
	}

	result := &resilience.AnalysisResult{
		RunID:     runID,
		Site:      "serengeti",
		Variables: []*resilience.VariableAnalysis{analysis},
	}
	if err := ledger.StoreArtifact(ctx, runID, core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactAnalysisResult,
		Payload:   result,
		CreatedAt: core.Now(),
	}); err != nil {
		t.Fatalf("Failed to store analysis result: %v", err)
	}
}

func doGet(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	server.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doGet(t, server, "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}

func TestRunListAndDetail(t *testing.T) {
	server, kit := newTestServer(t)
	seedRun(t, kit, "run-api-1")

	w := doGet(t, server, "/api/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if count, _ := body["count"].(float64); count != 1 {
		t.Errorf("Expected 1 run, got %v", body["count"])
	}

	w = doGet(t, server, "/api/runs/run-api-1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body = decodeBody(t, w)
	manifest, ok := body["manifest"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected manifest object, got %T", body["manifest"])
	}
	if manifest["site"] != "serengeti" {
		t.Errorf("Expected site serengeti, got %v", manifest["site"])
	}
	if count, _ := body["artifact_count"].(float64); count != 3 {
		t.Errorf("Expected 3 artifacts, got %v", body["artifact_count"])
	}

	w = doGet(t, server, "/api/runs/no-such-run")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown run, got %d", w.Code)
	}
}

func TestRunArtifactsKindFilter(t *testing.T) {
	server, kit := newTestServer(t)
	seedRun(t, kit, "run-api-1")

	w := doGet(t, server, "/api/runs/run-api-1/artifacts")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if count, _ := body["count"].(float64); count != 3 {
		t.Errorf("Expected 3 artifacts, got %v", body["count"])
	}

	w = doGet(t, server, "/api/runs/run-api-1/artifacts?kind=processed_series")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body = decodeBody(t, w)
	if count, _ := body["count"].(float64); count != 1 {
		t.Errorf("Expected 1 processed_series artifact, got %v", body["count"])
	}

	w = doGet(t, server, "/api/runs/run-api-1/artifacts?kind=processed_series&limit=1&offset=1")
	body = decodeBody(t, w)
	if count, _ := body["count"].(float64); count != 0 {
		t.Errorf("Expected offset past the only artifact to return none, got %v", body["count"])
	}
}

func TestRunResultEndpoint(t *testing.T) {
	server, kit := newTestServer(t)
	seedRun(t, kit, "run-api-1")

	w := doGet(t, server, "/api/runs/run-api-1/result")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["run_id"] != "run-api-1" {
		t.Errorf("Expected run_id run-api-1, got %v", body["run_id"])
	}
	if body["site"] != "serengeti" {
		t.Errorf("Expected site serengeti, got %v", body["site"])
	}

	w = doGet(t, server, "/api/runs/run-without-result/result")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without a result, got %d", w.Code)
	}
}

func TestRunSeriesEndpoint(t *testing.T) {
	server, kit := newTestServer(t)
	seedRun(t, kit, "run-api-1")

	w := doGet(t, server, "/api/runs/run-api-1/series/offset50")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["variable"] != "offset50" {
		t.Errorf("Expected variable offset50, got %v", body["variable"])
	}

	w = doGet(t, server, "/api/runs/run-api-1/series/ndvi")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown variable, got %d", w.Code)
	}
}

func TestArtifactEndpoint(t *testing.T) {
	server, kit := newTestServer(t)
	ctx := context.Background()

	if err := kit.LedgerAdapter().StoreArtifact(ctx, "run-api-2", core.Artifact{
		ID:        "artifact-known",
		Kind:      core.ArtifactDateRecord,
		Payload:   map[string]interface{}{"note": "fixture"},
		CreatedAt: core.Now(),
	}); err != nil {
		t.Fatalf("Failed to store artifact: %v", err)
	}

	w := doGet(t, server, "/api/artifacts/artifact-known")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["kind"] != string(core.ArtifactDateRecord) {
		t.Errorf("Expected kind %s, got %v", core.ArtifactDateRecord, body["kind"])
	}

	w = doGet(t, server, "/api/artifacts/artifact-missing")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown artifact, got %d", w.Code)
	}
}

func TestPayloadVariableFromDecodedJSON(t *testing.T) {
	payload := map[string]interface{}{"variable": "centrality"}
	v, ok := payloadVariable(payload)
	if !ok || v != "centrality" {
		t.Errorf("Expected centrality from decoded payload, got %v (ok=%v)", v, ok)
	}

	if _, ok := payloadVariable(42); ok {
		t.Errorf("Expected no variable from scalar payload")
	}
}
