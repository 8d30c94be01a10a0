package recommend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"imagescout/pkg/models"
)

// maxDerivedPackages caps how many of an image's installed packages are
// carried into the derived requirement, bounding engine cost per call.
const maxDerivedPackages = 20

// defaultTag is appended to image identifiers given without a tag.
const defaultTag = "latest"

// AnalyzeImage derives a requirement from an already-cataloged image and
// runs the engine with it. The returned analysis is nil when the image is
// not in the catalog at all (callers should trigger a scan, not retry);
// a non-nil analysis with no recommendations and no detected languages
// means "cataloged but uninformative".
//
// When the strict search finds nothing, the version constraint is relaxed
// in two bounded steps: first truncated to major.minor, then dropped
// entirely. The returned requirement is whichever variant produced the
// recommendations, so callers can report what was actually searched for.
func (e *Engine) AnalyzeImage(ctx context.Context, imageName string, req Requirement) (*Analysis, []Recommendation, Requirement, error) {
	req = req.Normalize()

	if !strings.Contains(imageName, ":") {
		imageName += ":" + defaultTag
	}

	logger := e.logger.With(zap.String("image", imageName))

	analysis, err := e.source.ImageByName(ctx, imageName)
	if err != nil {
		return nil, nil, req, fmt.Errorf("look up image %q: %w", imageName, err)
	}
	if analysis == nil {
		logger.Info("image not cataloged; scan it before asking for recommendations")
		return nil, []Recommendation{}, req, nil
	}

	if len(analysis.Languages) == 0 {
		// Minimal base images and pure-library images land here.
		logger.Info("no language runtimes recorded for image")
		return analysis, []Recommendation{}, req, nil
	}

	primary := selectPrimaryLanguage(analysis.Languages)
	logger.Info("derived primary language",
		zap.String("language", primary.Language),
		zap.String("language_version", primary.Version),
		zap.Bool("verified", primary.Verified),
	)

	derived := Requirement{
		Language:           primary.Language,
		Version:            primary.Version,
		Packages:           combinedPackages(analysis, maxDerivedPackages),
		SizePreference:     req.SizePreference,
		SecurityLevel:      req.SecurityLevel,
		MaxVulnerabilities: req.MaxVulnerabilities,
		MaxCritical:        req.MaxCritical,
		MaxHigh:            req.MaxHigh,
	}

	effective := derived
	recommendations, err := e.Recommend(ctx, derived)
	if err != nil {
		return analysis, nil, derived, err
	}

	// Relaxation ladder: exact -> major.minor -> unconstrained. Strictly
	// forward, strictly on empty results, at most two extra attempts.
	if len(recommendations) == 0 && derived.Version != "" {
		if majorMinor := truncateToMajorMinor(derived.Version); majorMinor != "" {
			relaxed := derived
			relaxed.Version = majorMinor
			logger.Info("no results for exact version, relaxing to major.minor",
				zap.String("relaxed_version", majorMinor))

			recommendations, err = e.Recommend(ctx, relaxed)
			if err != nil {
				return analysis, nil, derived, err
			}
			if len(recommendations) > 0 {
				effective = relaxed
			}
		}
	}

	if len(recommendations) == 0 {
		unconstrained := derived
		unconstrained.Version = ""
		logger.Info("no results with version constraint, relaxing to any version")

		recommendations, err = e.Recommend(ctx, unconstrained)
		if err != nil {
			return analysis, nil, derived, err
		}
		if len(recommendations) > 0 {
			effective = unconstrained
		}
	}

	return analysis, recommendations, effective, nil
}

// selectPrimaryLanguage picks the runtime a derived requirement should be
// built around: the first verified entry, else the first entry with a
// version, else the first entry.
func selectPrimaryLanguage(languages []models.DetectedLanguage) models.DetectedLanguage {
	primary := languages[0]

	for _, lang := range languages {
		if lang.Verified {
			return lang
		}
	}

	for _, lang := range languages {
		if lang.Version != "" {
			return lang
		}
	}

	return primary
}

// combinedPackages returns the order-stable union of the image's system
// packages and package managers, capped at limit.
func combinedPackages(a *Analysis, limit int) []string {
	seen := make(map[string]struct{}, len(a.SystemPackages)+len(a.PackageManagers))
	combined := make([]string, 0, limit)

	add := func(names []string) {
		for _, name := range names {
			if len(combined) >= limit {
				return
			}
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			combined = append(combined, name)
		}
	}

	add(a.SystemPackages)
	add(a.PackageManagers)
	return combined
}
