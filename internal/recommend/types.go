package recommend

import (
	"context"
	"errors"
	"strings"

	"imagescout/pkg/models"
)

// ErrInvalidRequirement is returned when a requirement has no language.
// Every scorer needs a language to evaluate, so this is the one input the
// engine rejects outright instead of degrading.
var ErrInvalidRequirement = errors.New("requirement must specify a language")

// Requirement is the caller's search criteria for a base image.
type Requirement struct {
	// Language is the runtime the image must provide (case-insensitive).
	Language string `json:"language"`

	// Version optionally constrains the runtime version. Partial versions
	// such as "3.12" are allowed.
	Version string `json:"version,omitempty"`

	// Packages lists package or tool names the candidate should provide.
	Packages []string `json:"packages,omitempty"`

	// Capabilities is advisory and currently unused by the scorers.
	Capabilities []string `json:"capabilities,omitempty"`

	SizePreference models.SizePreference `json:"size_preference,omitempty"`
	SecurityLevel  models.SecurityLevel  `json:"security_level,omitempty"`

	// MaxVulnerabilities caps total vulnerabilities at query time when set.
	MaxVulnerabilities *int `json:"max_vulnerabilities,omitempty"`

	// MaxCritical and MaxHigh cap per-severity counts under the "high"
	// security level. "maximum" ignores them and allows none.
	MaxCritical int `json:"max_critical_vulnerabilities"`
	MaxHigh     int `json:"max_high_vulnerabilities"`
}

// Normalize fills in defaults for unset enum fields.
func (r Requirement) Normalize() Requirement {
	if r.SizePreference == "" {
		r.SizePreference = models.SizeBalanced
	}
	if r.SecurityLevel == "" {
		r.SecurityLevel = models.SecurityHigh
	}
	return r
}

// Validate checks the requirement precondition.
func (r Requirement) Validate() error {
	if strings.TrimSpace(r.Language) == "" {
		return ErrInvalidRequirement
	}
	return nil
}

// Analysis is the normalized per-image projection the scorers consume.
// It is assembled once per candidate from catalog rows and never persisted.
type Analysis struct {
	Image           string                      `json:"image"`
	Languages       []models.DetectedLanguage   `json:"languages"`
	SystemPackages  []string                    `json:"system_packages,omitempty"`
	PackageManagers []string                    `json:"package_managers,omitempty"`
	Capabilities    []string                    `json:"capabilities,omitempty"`
	SizeBytes       int64                       `json:"size_bytes"`
	Vulnerabilities models.VulnerabilityCounts  `json:"vulnerabilities"`
	BaseOS          string                      `json:"base_os"`
}

// packageSet returns the case-folded union of installed system packages and
// package managers.
func (a *Analysis) packageSet() map[string]struct{} {
	set := make(map[string]struct{}, len(a.SystemPackages)+len(a.PackageManagers))
	for _, p := range a.SystemPackages {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range a.PackageManagers {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}

// hasCapability reports whether the analyzer recorded the named capability.
func (a *Analysis) hasCapability(name string) bool {
	for _, c := range a.Capabilities {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return true
		}
	}
	return false
}

// Recommendation is one ranked result. It lives only for the duration of a
// single Recommend call.
type Recommendation struct {
	ImageName string  `json:"image_name"`
	Score     float64 `json:"score"`

	LanguageMatch        bool    `json:"language_match"`
	VersionMatch         bool    `json:"version_match"`
	PackageCompatibility float64 `json:"package_compatibility"`
	SizeScore            float64 `json:"size_score"`
	SecurityScore        float64 `json:"security_score"`

	// Reasoning holds short human-readable notes in scorer order.
	Reasoning []string `json:"reasoning"`

	// Analysis is retained for downstream formatting.
	Analysis *Analysis `json:"analysis_data"`
}

// Candidate is one row returned by the catalog's candidate query: the image
// joined with its matching detected-language entry.
type Candidate struct {
	ImageName       string
	Language        models.DetectedLanguage
	Capabilities    []string
	SizeBytes       int64
	Vulnerabilities models.VulnerabilityCounts
	BaseOS          string
}

// CandidateSource is the read interface the engine needs from the catalog.
// Implemented by the catalog repository; tests use in-memory fakes.
type CandidateSource interface {
	// Candidates returns images whose detected languages match the given
	// language, optionally narrowed by a loose version match and a total
	// vulnerability cap.
	Candidates(ctx context.Context, language, version string, maxVulnerabilities *int) ([]Candidate, error)

	// ImageByName returns the full analysis view for an exact image name,
	// or nil when the image is not cataloged.
	ImageByName(ctx context.Context, name string) (*Analysis, error)

	// InstalledPackages returns the system package names and package
	// manager names recorded for one image, in catalog order.
	InstalledPackages(ctx context.Context, imageName string) (system, managers []string, err error)
}
