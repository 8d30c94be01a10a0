package recommend

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imagescout/pkg/models"
)

// platformKeywordPattern matches architecture/platform markers appearing as
// separate tokens in an image name or tag. Recommendations must stay
// architecture-neutral unless the caller searched by tag, so tagged platform
// builds are dropped up front. The trusted distro's short code is in the
// list too, inherited from the keyword set this filter was built from.
var platformKeywordPattern = regexp.MustCompile(
	`(?:^|[-_:/.])(?:arm64|armhf|armv7|armv6|aarch64|amd64|arm|amd|x86|x64|i386|i686|intel|apple|m1|m2|azl)(?:[-_:/.@]|$)`,
)

// Engine ranks cataloged images against requirements. It is stateless per
// call and safe for concurrent use as long as the source permits concurrent
// reads.
type Engine struct {
	source CandidateSource
	logger *zap.Logger
}

// NewEngine creates an engine reading candidates from source.
func NewEngine(source CandidateSource, logger *zap.Logger) *Engine {
	return &Engine{source: source, logger: logger}
}

// Recommend returns recommendations for the requirement ordered by score,
// highest first. An empty slice means no candidate qualified; callers must
// not treat it as an error.
func (e *Engine) Recommend(ctx context.Context, req Requirement) ([]Recommendation, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	logger := e.logger.With(
		zap.String("request_id", requestID),
		zap.String("language", req.Language),
		zap.String("version", req.Version),
	)

	candidates, err := e.source.Candidates(ctx, req.Language, req.Version, req.MaxVulnerabilities)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	candidates = filterBySecurityLevel(candidates, req)
	candidates = filterPlatformArtifacts(candidates)

	if len(candidates) == 0 {
		logger.Info("no candidates after security and platform filtering")
		return []Recommendation{}, nil
	}

	recommendations := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		analysis, err := e.buildAnalysis(ctx, c)
		if err != nil {
			// One malformed candidate must not sink the batch.
			logger.Warn("skipping candidate",
				zap.String("image", c.ImageName), zap.Error(err))
			continue
		}

		rec := scoreCandidate(analysis, req)
		if rec.Score <= 0 {
			continue // Not viable
		}
		recommendations = append(recommendations, rec)
	}

	// Stable sort keeps catalog query order for equal scores, which makes
	// repeated calls deterministic.
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Score > recommendations[j].Score
	})

	logger.Info("recommendation complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(recommendations)),
	)

	return recommendations, nil
}

// buildAnalysis assembles the scoring view for one candidate row, pulling
// the image's installed package lists from the source.
func (e *Engine) buildAnalysis(ctx context.Context, c Candidate) (*Analysis, error) {
	system, managers, err := e.source.InstalledPackages(ctx, c.ImageName)
	if err != nil {
		return nil, fmt.Errorf("installed packages for %q: %w", c.ImageName, err)
	}

	var languages []models.DetectedLanguage
	if c.Language.Language != "" {
		languages = []models.DetectedLanguage{c.Language}
	}

	return &Analysis{
		Image:           c.ImageName,
		Languages:       languages,
		SystemPackages:  system,
		PackageManagers: managers,
		Capabilities:    c.Capabilities,
		SizeBytes:       c.SizeBytes,
		Vulnerabilities: c.Vulnerabilities,
		BaseOS:          c.BaseOS,
	}, nil
}

// scoreCandidate runs all five factor scorers and assembles the weighted
// recommendation with its reasoning notes, in scorer order.
func scoreCandidate(a *Analysis, req Requirement) Recommendation {
	var reasoning []string

	languageScore := scoreLanguage(a, req)
	switch {
	case languageScore > 0.8:
		reasoning = append(reasoning, fmt.Sprintf("Excellent %s support", req.Language))
	case languageScore > 0.5:
		reasoning = append(reasoning, fmt.Sprintf("Good %s support", req.Language))
	}

	versionScore := scoreVersion(a, req)
	switch {
	case versionScore > 0.9:
		reasoning = append(reasoning, "Perfect version match")
	case versionScore > 0.7:
		reasoning = append(reasoning, "Compatible version")
	}

	packageScore := scorePackages(a, req)
	switch {
	case packageScore >= 0.8:
		reasoning = append(reasoning, packageReasoning(a, req))
	case packageScore > 0.6:
		reasoning = append(reasoning, "Good package manager support")
	}

	sizeScore := scoreSize(a, req)
	if sizeScore > 0.8 {
		reasoning = append(reasoning, "Optimal size for requirements")
	}

	securityScore := scoreSecurity(a, req)
	if securityScore > 0.9 {
		reasoning = append(reasoning, "Excellent security profile")
	}

	score := languageScore*weightLanguage +
		versionScore*weightVersion +
		packageScore*weightPackages +
		sizeScore*weightSize +
		securityScore*weightSecurity

	return Recommendation{
		ImageName:            a.Image,
		Score:                score,
		LanguageMatch:        true, // Candidates are already language-filtered
		VersionMatch:         versionMatches(a, req),
		PackageCompatibility: packageScore,
		SizeScore:            sizeScore,
		SecurityScore:        securityScore,
		Reasoning:            reasoning,
		Analysis:             a,
	}
}

// filterBySecurityLevel drops candidates the security level disqualifies.
// This is a cheap elimination pass before scoring; the security scorer
// enforces the same gates independently.
func filterBySecurityLevel(candidates []Candidate, req Requirement) []Candidate {
	switch req.SecurityLevel {
	case models.SecurityMaximum:
		return filterCandidates(candidates, func(c Candidate) bool {
			return c.Vulnerabilities.Critical == 0 && c.Vulnerabilities.High == 0
		})
	case models.SecurityHigh:
		return filterCandidates(candidates, func(c Candidate) bool {
			return c.Vulnerabilities.Critical <= req.MaxCritical &&
				c.Vulnerabilities.High <= req.MaxHigh
		})
	default:
		return candidates
	}
}

// filterPlatformArtifacts removes images whose names carry an architecture
// or platform marker token.
func filterPlatformArtifacts(candidates []Candidate) []Candidate {
	return filterCandidates(candidates, func(c Candidate) bool {
		return !platformKeywordPattern.MatchString(strings.ToLower(c.ImageName))
	})
}

func filterCandidates(candidates []Candidate, keep func(Candidate) bool) []Candidate {
	filtered := candidates[:0:0]
	for _, c := range candidates {
		if keep(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
