package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"imagescout/pkg/models"
)

// handler serves the catalog HTTP API.
type handler struct {
	repo   ImageRepository
	logger *zap.Logger
}

func (h *handler) listImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := ListOptions{
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = n
	}

	filter := ImageFilter{
		Language: q.Get("language"),
		Search:   q.Get("search"),
	}

	result, err := h.repo.List(r.Context(), filter, opts)
	if err != nil {
		h.logger.Error("failed to list images", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list images")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "image name is required")
		return
	}

	img, err := h.repo.GetByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found: "+name)
			return
		}
		h.logger.Error("failed to get image", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get image")
		return
	}

	writeJSON(w, http.StatusOK, img)
}

func (h *handler) ingestAnalysis(w http.ResponseWriter, r *http.Request) {
	var analysis models.ImageAnalysis
	if err := json.NewDecoder(r.Body).Decode(&analysis); err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis body: "+err.Error())
		return
	}
	if strings.TrimSpace(analysis.Image) == "" {
		writeError(w, http.StatusBadRequest, "analysis must name an image")
		return
	}

	if err := h.repo.SaveAnalysis(r.Context(), &analysis); err != nil {
		h.logger.Error("failed to save analysis", zap.String("image", analysis.Image), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save analysis")
		return
	}

	h.logger.Info("analysis ingested", zap.String("image", analysis.Image))
	writeJSON(w, http.StatusCreated, map[string]string{"image": analysis.Image, "status": "stored"})
}

func (h *handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "image name is required")
		return
	}

	if err := h.repo.Delete(r.Context(), name); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found: "+name)
			return
		}
		h.logger.Error("failed to delete image", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete image")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.VulnerabilityStats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) languages(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.LanguageSummary(r.Context())
	if err != nil {
		h.logger.Error("failed to summarize languages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to summarize languages")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	snapshot, err := Export(r.Context(), h.repo)
	if err != nil {
		h.logger.Error("failed to export catalog", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export catalog")
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="imagescout-catalog.yaml"`)
	if err := snapshot.WriteTo(w); err != nil {
		h.logger.Error("failed to write export", zap.Error(err))
	}
}

func (h *handler) restore(w http.ResponseWriter, r *http.Request) {
	snapshot, err := ReadSnapshot(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot: "+err.Error())
		return
	}

	restored, err := Restore(r.Context(), h.repo, snapshot)
	if err != nil {
		h.logger.Error("failed to restore catalog", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to restore catalog")
		return
	}

	h.logger.Info("catalog restored", zap.Int("images", restored))
	writeJSON(w, http.StatusOK, map[string]int{"restored": restored})
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
