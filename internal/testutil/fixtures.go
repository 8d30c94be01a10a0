package testutil

import (
	"time"

	"imagescout/pkg/models"
)

// NewAnalysis returns an analyzer record with sensible defaults, suitable for
// seeding catalog tests. Override individual fields via options.
func NewAnalysis(image string, opts ...func(*models.ImageAnalysis)) *models.ImageAnalysis {
	a := &models.ImageAnalysis{
		Image: image,
		Languages: []models.DetectedLanguage{
			{Language: "python", Version: "3.12.4", MajorMinor: "3.12", Verified: true},
		},
		PackageManagers: []models.PackageRecord{
			{Name: "pip", Version: "24.0"},
		},
		Manifest:  models.Manifest{Size: 120 * 1024 * 1024, Layers: 8},
		BaseOS:    models.BaseOS{Name: "debian", Version: "12"},
		ScannedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Scanner:   "trivy",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithLanguage replaces the detected language list with a single entry.
func WithLanguage(language, version string, verified bool) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) {
		mm := ""
		if i := majorMinorEnd(version); i > 0 {
			mm = version[:i]
		}
		a.Languages = []models.DetectedLanguage{
			{Language: language, Version: version, MajorMinor: mm, Verified: verified},
		}
	}
}

// WithLanguages replaces the detected language list.
func WithLanguages(langs ...models.DetectedLanguage) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) { a.Languages = langs }
}

// WithSize sets the image size in bytes.
func WithSize(bytes int64) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) { a.Manifest.Size = bytes }
}

// WithVulnerabilities sets the severity counts. Total is derived.
func WithVulnerabilities(critical, high, medium, low int) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) {
		a.Vulnerabilities = models.VulnerabilityCounts{
			Total:    critical + high + medium + low,
			Critical: critical,
			High:     high,
			Medium:   medium,
			Low:      low,
		}
	}
}

// WithSystemPackages replaces the installed system package list.
func WithSystemPackages(names ...string) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) {
		a.SystemPackages = a.SystemPackages[:0]
		for _, n := range names {
			a.SystemPackages = append(a.SystemPackages, models.PackageRecord{Name: n})
		}
	}
}

// WithPackageManagers replaces the package manager list.
func WithPackageManagers(names ...string) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) {
		a.PackageManagers = a.PackageManagers[:0]
		for _, n := range names {
			a.PackageManagers = append(a.PackageManagers, models.PackageRecord{Name: n})
		}
	}
}

// WithCapabilities replaces the capability list.
func WithCapabilities(caps ...string) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) { a.Capabilities = caps }
}

// WithBaseOS sets the base operating system.
func WithBaseOS(name, version string) func(*models.ImageAnalysis) {
	return func(a *models.ImageAnalysis) {
		a.BaseOS = models.BaseOS{Name: name, Version: version}
	}
}

// majorMinorEnd returns the index just past the second dotted component of a
// numeric version, or 0 when the version has no major.minor prefix.
func majorMinorEnd(version string) int {
	dots := 0
	for i := 0; i < len(version); i++ {
		switch {
		case version[i] == '.':
			dots++
			if dots == 2 {
				return i
			}
		case version[i] < '0' || version[i] > '9':
			return 0
		}
	}
	if dots == 1 {
		return len(version)
	}
	return 0
}
