package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/catalog"
	"imagescout/internal/testutil"
	"imagescout/pkg/models"
)

func newCatalogMux(t *testing.T) (*http.ServeMux, *catalog.Catalog) {
	t.Helper()

	cat := catalog.New(testutil.NewStore(t))
	if err := cat.Init(viper.New(), zap.NewNop()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	mux := http.NewServeMux()
	for _, route := range cat.Routes() {
		mux.HandleFunc(route.Method+" /api/v1/catalog"+route.Path, route.Handler)
	}
	return mux, cat
}

func TestIngestAndGetImage(t *testing.T) {
	mux, _ := newCatalogMux(t)

	payload, err := json.Marshal(testutil.NewAnalysis("mcr.microsoft.com/azurelinux/python:3.12"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/catalog/images", strings.NewReader(string(payload))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	// Image names contain slashes; the route must capture the full remainder.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/images/mcr.microsoft.com/azurelinux/python:3.12", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var img models.Image
	if err := json.Unmarshal(rec.Body.Bytes(), &img); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Name != "mcr.microsoft.com/azurelinux/python:3.12" {
		t.Errorf("name = %q, want full image reference", img.Name)
	}
	if img.Registry != "mcr.microsoft.com" {
		t.Errorf("registry = %q, want mcr.microsoft.com", img.Registry)
	}
}

func TestIngestRejectsInvalidBody(t *testing.T) {
	mux, _ := newCatalogMux(t)

	for name, body := range map[string]string{
		"malformed json": `{`,
		"missing image":  `{"languages": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/catalog/images", strings.NewReader(body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetImageNotFound(t *testing.T) {
	mux, _ := newCatalogMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/images/ghost:latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
}

func TestListImagesEndpoint(t *testing.T) {
	mux, cat := newCatalogMux(t)
	ctx := context.Background()

	for _, name := range []string{"python:3.12", "node:20"} {
		if err := cat.Repository().SaveAnalysis(ctx, testutil.NewAnalysis(name)); err != nil {
			t.Fatalf("SaveAnalysis: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/images?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result catalog.ListResult[models.Image]
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 2 || len(result.Items) != 1 {
		t.Errorf("result = %d/%d, want 1 item of 2 total", len(result.Items), result.Total)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/images?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestDeleteImageEndpoint(t *testing.T) {
	mux, cat := newCatalogMux(t)

	if err := cat.Repository().SaveAnalysis(context.Background(), testutil.NewAnalysis("python:3.12")); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/catalog/images/python:3.12", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/catalog/images/python:3.12", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestStatsAndLanguagesEndpoints(t *testing.T) {
	mux, cat := newCatalogMux(t)

	if err := cat.Repository().SaveAnalysis(context.Background(), testutil.NewAnalysis("python:3.12",
		testutil.WithVulnerabilities(1, 0, 0, 0),
	)); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", rec.Code)
	}
	var stats catalog.VulnerabilityStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Images != 1 || stats.Critical != 1 {
		t.Errorf("stats = %+v, want 1 image with 1 critical", stats)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/languages", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("languages status = %d, want 200", rec.Code)
	}
	var langs []catalog.LanguageStat
	if err := json.Unmarshal(rec.Body.Bytes(), &langs); err != nil {
		t.Fatalf("decode languages: %v", err)
	}
	if len(langs) != 1 || langs[0].Language != "python" {
		t.Errorf("languages = %+v, want just python", langs)
	}
}

func TestExportRestoreEndpoints(t *testing.T) {
	mux, cat := newCatalogMux(t)

	if err := cat.Repository().SaveAnalysis(context.Background(), testutil.NewAnalysis("python:3.12")); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/catalog/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q, want application/yaml", ct)
	}
	exported := rec.Body.String()

	// Restore the snapshot into a fresh catalog.
	freshMux, freshCat := newCatalogMux(t)
	rec = httptest.NewRecorder()
	freshMux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/catalog/restore", strings.NewReader(exported)))
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	n, err := freshCat.Repository().Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("restored catalog has %d images, want 1", n)
	}
}
