package recommend

import (
	"fmt"
	"strings"

	"imagescout/pkg/models"
)

// Composite weights. Security is small on purpose: the pre-filter and hard
// gates already removed disqualified images, so the factor only ranks among
// eligible ones.
const (
	weightLanguage = 0.40
	weightVersion  = 0.25
	weightPackages = 0.20
	weightSize     = 0.10
	weightSecurity = 0.05
)

// versionMatchThreshold is the minimum version score counted as a match.
const versionMatchThreshold = 0.7

// trustedDistro is the base distribution treated as inherently trustworthy
// by the security scorer.
const (
	trustedDistro         = "azurelinux"
	trustedDistroRegistry = "mcr.microsoft.com/azurelinux"
)

// Size class boundaries in bytes.
const (
	sizeTiny   = 50 * 1024 * 1024
	sizeSmall  = 100 * 1024 * 1024
	sizeMedium = 200 * 1024 * 1024
	sizeLarge  = 300 * 1024 * 1024
)

// packageEcosystems maps a language to the package managers its ecosystem
// normally installs with.
var packageEcosystems = map[string][]string{
	"python": {"pip", "conda", "poetry"},
	"node":   {"npm", "yarn", "pnpm"},
	"java":   {"maven", "gradle"},
	"go":     {"go mod"},
	"dotnet": {"nuget"},
	"php":    {"composer"},
	"ruby":   {"gem", "bundler"},
}

// scoreLanguage rates how well the image provides the required runtime.
// A verified runtime scores 1.0, an unverified one 0.9. Images without the
// runtime still score 0.3 on a Linux base (the runtime could be installed),
// otherwise 0.0.
func scoreLanguage(a *Analysis, req Requirement) float64 {
	target := strings.ToLower(req.Language)
	for _, lang := range a.Languages {
		if strings.ToLower(lang.Language) == target {
			if lang.Verified {
				return 1.0
			}
			return 0.9
		}
	}

	if strings.Contains(strings.ToLower(a.BaseOS), "linux") {
		return 0.3
	}
	return 0.0
}

// scoreVersion rates version compatibility of the image's matching runtime.
// No version constraint scores a perfect 1.0; a constraint with no matching
// runtime entry scores 0.0.
func scoreVersion(a *Analysis, req Requirement) float64 {
	if req.Version == "" {
		return 1.0
	}

	target := strings.ToLower(req.Language)
	for _, lang := range a.Languages {
		if strings.ToLower(lang.Language) == target {
			return CompareVersions(req.Version, lang.Version, target)
		}
	}
	return 0.0
}

// versionMatches reports whether the version factor clears the match
// threshold for the requirement.
func versionMatches(a *Analysis, req Requirement) bool {
	if req.Version == "" {
		return true
	}
	return scoreVersion(a, req) >= versionMatchThreshold
}

// scorePackages rates availability of the required packages. All present
// scores 1.0, partial presence scores linearly, and a complete miss falls
// back to 0.4 when the image can at least fetch packages over HTTP, or 0.1
// otherwise. Soft fallbacks are intentional: incomplete catalog data should
// rank low, not fail hard.
func scorePackages(a *Analysis, req Requirement) float64 {
	if len(req.Packages) == 0 {
		return 1.0
	}

	installed := a.packageSet()
	found := 0
	for _, pkg := range req.Packages {
		if _, ok := installed[strings.ToLower(pkg)]; ok {
			found++
		}
	}

	if found == len(req.Packages) {
		return 1.0
	}
	if found > 0 {
		return float64(found) / float64(len(req.Packages))
	}

	if a.hasCapability("http_client") {
		return 0.4 // Packages could be downloaded manually
	}
	return 0.1 // Very limited package support
}

// scoreSize rates the image size against the caller's preference. Unknown
// size is neutral.
func scoreSize(a *Analysis, req Requirement) float64 {
	size := a.SizeBytes
	if size == 0 {
		return 0.5
	}

	switch req.SizePreference {
	case models.SizeMinimal:
		switch {
		case size < sizeTiny:
			return 1.0
		case size < sizeSmall:
			return 0.7
		default:
			return 0.3
		}
	case models.SizeBalanced:
		switch {
		case size > sizeTiny && size < sizeMedium:
			return 1.0
		case size < sizeLarge:
			return 0.8
		default:
			return 0.5
		}
	default: // full: size doesn't matter
		return 1.0
	}
}

// scoreSecurity rates the image's security posture. Starts from 1.0,
// subtracts for non-trusted provenance and vulnerability counts, floors at
// zero, then applies the hard gates mandated by the security level. The
// gates duplicate the engine's pre-filter so the scorer is also correct
// when invoked standalone.
func scoreSecurity(a *Analysis, req Requirement) float64 {
	score := 1.0

	name := strings.ToLower(a.Image)
	if !strings.Contains(strings.ToLower(a.BaseOS), trustedDistro) &&
		!strings.Contains(name, trustedDistro) &&
		!strings.Contains(name, trustedDistroRegistry) {
		score -= 0.2
	}

	v := a.Vulnerabilities
	if v.Critical > 0 {
		score -= 0.5
	}
	if v.High > 0 {
		score -= 0.3
	}

	// Only one total-count penalty applies, chosen by the higher threshold.
	if v.Total > 10 {
		score -= 0.1
	} else if v.Total > 5 {
		score -= 0.05
	}

	if score < 0 {
		score = 0
	}

	switch req.SecurityLevel {
	case models.SecurityMaximum:
		if v.Critical > 0 || v.High > 0 {
			return 0.0
		}
	case models.SecurityHigh:
		if v.Critical > req.MaxCritical || v.High > req.MaxHigh {
			return 0.0
		}
	}

	return score
}

// packageReasoning builds the detailed package-availability note emitted
// when the package factor scores high.
func packageReasoning(a *Analysis, req Requirement) string {
	if len(req.Packages) == 0 {
		return "Rich package ecosystem"
	}

	system := make(map[string]struct{}, len(a.SystemPackages))
	for _, p := range a.SystemPackages {
		system[strings.ToLower(p)] = struct{}{}
	}
	managers := make(map[string]struct{}, len(a.PackageManagers))
	for _, p := range a.PackageManagers {
		managers[strings.ToLower(p)] = struct{}{}
	}

	var foundSystem, foundManagers, missing int
	for _, pkg := range req.Packages {
		key := strings.ToLower(pkg)
		switch {
		case hasKey(system, key):
			foundSystem++
		case hasKey(managers, key):
			foundManagers++
		default:
			missing++
		}
	}

	totalFound := foundSystem + foundManagers
	switch {
	case totalFound == len(req.Packages):
		return fmt.Sprintf("All packages available (%s)",
			strings.Join(packageParts(foundSystem, foundManagers, "package managers available"), ", "))
	case totalFound > 0:
		return fmt.Sprintf("%s (%d missing)",
			strings.Join(packageParts(foundSystem, foundManagers, "available as managers"), ", "), missing)
	default:
		for _, expected := range packageEcosystems[strings.ToLower(req.Language)] {
			if hasKey(managers, expected) {
				return "Can install packages via package managers"
			}
		}
		return "Limited package support"
	}
}

func packageParts(system, managers int, managerLabel string) []string {
	var parts []string
	if system > 0 {
		parts = append(parts, fmt.Sprintf("%d pre-installed", system))
	}
	if managers > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", managers, managerLabel))
	}
	return parts
}

func hasKey(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
