package recommend

import (
	"fmt"
	"strings"
)

// FormatRecommendations renders up to limit recommendations as plain text
// for CLI and log output.
func FormatRecommendations(recommendations []Recommendation, limit int) string {
	if len(recommendations) == 0 {
		return "No suitable images found for your requirements."
	}
	if limit <= 0 || limit > len(recommendations) {
		limit = len(recommendations)
	}

	var b strings.Builder
	b.WriteString("Recommended base images:\n\n")

	for i, rec := range recommendations[:limit] {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec.ImageName)
		fmt.Fprintf(&b, "   Score: %.2f/1.00\n", rec.Score)
		if len(rec.Reasoning) > 0 {
			fmt.Fprintf(&b, "   Reasons: %s\n", strings.Join(rec.Reasoning, ", "))
		}

		if rec.Analysis == nil {
			b.WriteString("\n")
			continue
		}

		if len(rec.Analysis.Languages) > 0 {
			lang := rec.Analysis.Languages[0]
			version := lang.Version
			if version == "" {
				version = "unknown"
			}
			fmt.Fprintf(&b, "   Language: %s %s\n", lang.Language, version)
		}

		v := rec.Analysis.Vulnerabilities
		if v.Total == 0 {
			b.WriteString("   Security: no known vulnerabilities\n")
		} else {
			fmt.Fprintf(&b, "   Security: %d total", v.Total)
			if v.Critical > 0 {
				fmt.Fprintf(&b, ", %d critical", v.Critical)
			}
			if v.High > 0 {
				fmt.Fprintf(&b, ", %d high", v.High)
			}
			b.WriteString("\n")
		}

		if rec.Analysis.SizeBytes > 0 {
			fmt.Fprintf(&b, "   Size: %.1f MB\n", float64(rec.Analysis.SizeBytes)/(1024*1024))
		}

		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
