package advisor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"imagescout/internal/recommend"
)

// handler serves the advisor HTTP API.
type handler struct {
	advisor *Advisor
	logger  *zap.Logger
}

// recommendResponse is the body for POST /recommend.
type recommendResponse struct {
	Requirement     recommend.Requirement      `json:"requirement"`
	Count           int                        `json:"count"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// analyzeRequest is the body for POST /analyze.
type analyzeRequest struct {
	Image       string                `json:"image"`
	Requirement recommend.Requirement `json:"requirement"`
}

// analyzeResponse reports what was detected in the image and which cataloged
// alternatives match the derived requirement.
type analyzeResponse struct {
	Image           string                     `json:"image"`
	Found           bool                       `json:"found"`
	Analysis        *recommend.Analysis        `json:"analysis,omitempty"`
	Requirement     recommend.Requirement      `json:"derived_requirement"`
	Count           int                        `json:"count"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Requirement
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid requirement body: "+err.Error())
		return
	}

	recs, err := h.advisor.engine.Recommend(r.Context(), req)
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidRequirement) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("recommendation failed", zap.String("language", req.Language), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}

	recs = h.limit(recs, r)
	writeJSON(w, http.StatusOK, recommendResponse{
		Requirement:     req.Normalize(),
		Count:           len(recs),
		Recommendations: recs,
	})
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid analyze body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	analysis, recs, derived, err := h.advisor.engine.AnalyzeImage(r.Context(), req.Image, req.Requirement)
	if err != nil {
		h.logger.Error("analyze failed", zap.String("image", req.Image), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analyze failed")
		return
	}

	recs = h.limit(recs, r)
	writeJSON(w, http.StatusOK, analyzeResponse{
		Image:           req.Image,
		Found:           analysis != nil,
		Analysis:        analysis,
		Requirement:     derived,
		Count:           len(recs),
		Recommendations: recs,
	})
}

// limit applies the request's ?limit= or the configured default.
func (h *handler) limit(recs []recommend.Recommendation, r *http.Request) []recommend.Recommendation {
	limit := h.advisor.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	return recs
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
