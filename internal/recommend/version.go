package recommend

import (
	"regexp"
	"strconv"
	"strings"
)

// Per-language version patterns. Java versions are often a bare major
// ("17"); everything else reads major.minor with an optional patch.
var versionPatterns = map[string]*regexp.Regexp{
	"python": regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`),
	"node":   regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`),
	"java":   regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?`),
	"go":     regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`),
	"dotnet": regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`),
}

var genericVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`)

// CompareVersions scores how well an available version satisfies a required
// one for the given language. The result ladder is deliberate and load
// bearing (the engine's version-match flag keys off 0.7):
//
//	1.0 exact, 0.9 same major.minor, 0.7 adjacent minor,
//	0.6 same major, 0.2 different major.
//
// Empty input on either side scores a neutral 0.5, as does an unparseable
// pair that isn't string-equal.
func CompareVersions(required, available, language string) float64 {
	if required == "" || available == "" {
		return 0.5
	}

	pattern, ok := versionPatterns[strings.ToLower(language)]
	if !ok {
		pattern = genericVersionPattern
	}

	reqParts := parseVersionParts(pattern, required)
	availParts := parseVersionParts(pattern, available)

	if reqParts == nil || availParts == nil {
		// Fall back to plain string comparison.
		if required == available {
			return 1.0
		}
		return 0.5
	}

	if equalParts(reqParts, availParts) {
		return 1.0
	}

	if reqParts[0] == availParts[0] {
		if len(reqParts) >= 2 && len(availParts) >= 2 {
			switch diff := reqParts[1] - availParts[1]; {
			case diff == 0:
				return 0.9 // Same major.minor, differing patch
			case diff == 1 || diff == -1:
				return 0.7 // Adjacent minor
			}
		}
		return 0.6 // Same major only
	}

	return 0.2 // Different major
}

// parseVersionParts extracts the numeric components matched by pattern, or
// nil when the string doesn't match at all.
func parseVersionParts(pattern *regexp.Regexp, v string) []int {
	m := pattern.FindStringSubmatch(v)
	if m == nil {
		return nil
	}
	parts := make([]int, 0, len(m)-1)
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return nil
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func equalParts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// truncateToMajorMinor reduces a version string to its major.minor prefix.
// Returns "" when the string has no major.minor form to truncate to.
func truncateToMajorMinor(version string) string {
	m := genericVersionPattern.FindStringSubmatch(version)
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2]
}
