package advisor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/advisor"
	"imagescout/internal/plugin"
	"imagescout/internal/recommend"
	"imagescout/pkg/models"
)

// stubSource serves a fixed candidate set regardless of query.
type stubSource struct {
	candidates []recommend.Candidate
	analyses   map[string]*recommend.Analysis
}

func (s *stubSource) Candidates(context.Context, string, string, *int) ([]recommend.Candidate, error) {
	return s.candidates, nil
}

func (s *stubSource) ImageByName(_ context.Context, name string) (*recommend.Analysis, error) {
	return s.analyses[name], nil
}

func (s *stubSource) InstalledPackages(context.Context, string) ([]string, []string, error) {
	return nil, []string{"pip"}, nil
}

func newAdvisorMux(t *testing.T, src recommend.CandidateSource) *http.ServeMux {
	t.Helper()

	a := advisor.New(src)
	if err := a.Init(viper.New(), zap.NewNop()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	mux := http.NewServeMux()
	for _, route := range a.Routes() {
		mux.HandleFunc(route.Method+" /api/v1/advisor"+route.Path, route.Handler)
	}
	return mux
}

func pythonCandidate(name string) recommend.Candidate {
	return recommend.Candidate{
		ImageName: name,
		Language: models.DetectedLanguage{
			Language: "python", Version: "3.12.4", MajorMinor: "3.12", Verified: true,
		},
		SizeBytes: 120 * 1024 * 1024,
		BaseOS:    "azurelinux",
	}
}

func TestRecommendEndpoint(t *testing.T) {
	mux := newAdvisorMux(t, &stubSource{
		candidates: []recommend.Candidate{pythonCandidate("python:3.12")},
	})

	body := strings.NewReader(`{"language": "python", "version": "3.12"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/recommend", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Count           int                        `json:"count"`
		Recommendations []recommend.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Recommendations) != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Recommendations[0].ImageName != "python:3.12" {
		t.Errorf("image = %q, want python:3.12", resp.Recommendations[0].ImageName)
	}
	if resp.Recommendations[0].Score <= 0 {
		t.Errorf("score = %f, want positive", resp.Recommendations[0].Score)
	}
}

func TestRecommendEndpointRejectsMissingLanguage(t *testing.T) {
	mux := newAdvisorMux(t, &stubSource{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/recommend", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
}

func TestRecommendEndpointRejectsBadJSON(t *testing.T) {
	mux := newAdvisorMux(t, &stubSource{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/recommend", strings.NewReader(`{`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRecommendEndpointLimit(t *testing.T) {
	mux := newAdvisorMux(t, &stubSource{
		candidates: []recommend.Candidate{
			pythonCandidate("python-a:3.12"),
			pythonCandidate("python-b:3.12"),
			pythonCandidate("python-c:3.12"),
		},
	})

	body := strings.NewReader(`{"language": "python"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/recommend?limit=2", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	src := &stubSource{
		candidates: []recommend.Candidate{pythonCandidate("python-alt:3.12")},
		analyses: map[string]*recommend.Analysis{
			"python:3.12": {
				Image: "python:3.12",
				Languages: []models.DetectedLanguage{
					{Language: "python", Version: "3.12.4", Verified: true},
				},
			},
		},
	}
	mux := newAdvisorMux(t, src)

	body := strings.NewReader(`{"image": "python:3.12"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/analyze", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Found       bool `json:"found"`
		Count       int  `json:"count"`
		Requirement struct {
			Language string `json:"language"`
		} `json:"derived_requirement"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Found {
		t.Error("found = false, want true")
	}
	if resp.Requirement.Language != "python" {
		t.Errorf("derived language = %q, want python", resp.Requirement.Language)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestAnalyzeEndpointUnknownImage(t *testing.T) {
	mux := newAdvisorMux(t, &stubSource{})

	body := strings.NewReader(`{"image": "ghost:1.0"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/analyze", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Found bool `json:"found"`
		Count int  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Found || resp.Count != 0 {
		t.Errorf("resp = %+v, want not found with zero recommendations", resp)
	}
}

func TestAnalyzeEndpointRequiresImage(t *testing.T) {
	mux := newAdvisorMux(t, &stubSource{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/advisor/analyze", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// Compile-time check that the advisor satisfies the plugin contract.
var _ plugin.Plugin = (*advisor.Advisor)(nil)
