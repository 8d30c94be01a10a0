package models

import "time"

// SizePreference expresses how strongly a caller cares about image size.
type SizePreference string

const (
	SizeMinimal  SizePreference = "minimal"
	SizeBalanced SizePreference = "balanced"
	SizeFull     SizePreference = "full"
)

// Valid reports whether the preference is one of the known values.
func (p SizePreference) Valid() bool {
	switch p {
	case SizeMinimal, SizeBalanced, SizeFull:
		return true
	}
	return false
}

// SecurityLevel expresses how strictly vulnerable candidates are rejected.
type SecurityLevel string

const (
	SecurityStandard SecurityLevel = "standard"
	SecurityHigh     SecurityLevel = "high"
	SecurityMaximum  SecurityLevel = "maximum"
)

// Valid reports whether the level is one of the known values.
func (l SecurityLevel) Valid() bool {
	switch l {
	case SecurityStandard, SecurityHigh, SecurityMaximum:
		return true
	}
	return false
}

// VulnerabilityCounts summarizes scanner findings for one image.
type VulnerabilityCounts struct {
	Total    int `json:"total" yaml:"total"`
	Critical int `json:"critical" yaml:"critical"`
	High     int `json:"high" yaml:"high"`
	Medium   int `json:"medium" yaml:"medium"`
	Low      int `json:"low" yaml:"low"`
}

// DetectedLanguage is one language runtime found inside an image.
type DetectedLanguage struct {
	Language   string `json:"language" yaml:"language"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	MajorMinor string `json:"major_minor,omitempty" yaml:"major_minor,omitempty"`
	// Verified is set when the analyzer confirmed the runtime executes,
	// not just that its files are present.
	Verified bool `json:"verified" yaml:"verified"`
}

// Image is a cataloged container image record.
type Image struct {
	ID         int64  `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Registry   string `json:"registry" yaml:"registry"`
	Repository string `json:"repository" yaml:"repository"`
	Tag        string `json:"tag" yaml:"tag"`
	Digest     string `json:"digest,omitempty" yaml:"digest,omitempty"`

	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`
	Layers    int   `json:"layers,omitempty" yaml:"layers,omitempty"`

	BaseOSName    string `json:"base_os_name,omitempty" yaml:"base_os_name,omitempty"`
	BaseOSVersion string `json:"base_os_version,omitempty" yaml:"base_os_version,omitempty"`

	Vulnerabilities VulnerabilityCounts `json:"vulnerabilities" yaml:"vulnerabilities"`

	// Counts from the comprehensive scanner, when one has run.
	SecretsFound  int `json:"secrets_found,omitempty" yaml:"secrets_found,omitempty"`
	ConfigIssues  int `json:"config_issues,omitempty" yaml:"config_issues,omitempty"`
	LicenseIssues int `json:"license_issues,omitempty" yaml:"license_issues,omitempty"`

	ScannedAt     time.Time `json:"scanned_at" yaml:"scanned_at"`
	VulnScanner   string    `json:"vuln_scanner,omitempty" yaml:"vuln_scanner,omitempty"`
	VulnScannedAt time.Time `json:"vuln_scanned_at,omitzero" yaml:"vuln_scanned_at,omitempty"`
}

// Manifest carries the subset of registry manifest data the catalog keeps.
type Manifest struct {
	Size   int64 `json:"size" yaml:"size"`
	Layers int   `json:"layers,omitempty" yaml:"layers,omitempty"`
}

// BaseOS identifies the operating system an image is built on.
type BaseOS struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// PackageRecord is one installed package or package manager inside an image.
type PackageRecord struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
}

// ImageAnalysis is the structured record an external analyzer produces for a
// single image. The catalog ingests it verbatim; the recommendation engine
// never sees partial analyzer output.
type ImageAnalysis struct {
	Image           string              `json:"image" yaml:"image"`
	Languages       []DetectedLanguage  `json:"languages" yaml:"languages"`
	SystemPackages  []PackageRecord     `json:"system_packages,omitempty" yaml:"system_packages,omitempty"`
	PackageManagers []PackageRecord     `json:"package_managers,omitempty" yaml:"package_managers,omitempty"`
	Capabilities    []string            `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Manifest        Manifest            `json:"manifest" yaml:"manifest"`
	Vulnerabilities VulnerabilityCounts `json:"vulnerabilities" yaml:"vulnerabilities"`
	BaseOS          BaseOS              `json:"base_os" yaml:"base_os"`
	ScannedAt       time.Time           `json:"scanned_at,omitzero" yaml:"scanned_at,omitempty"`
	Scanner         string              `json:"scanner,omitempty" yaml:"scanner,omitempty"`
}
