package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imagescout/internal/recommend"
	"imagescout/pkg/models"
)

func init() {
	var (
		language     string
		langVersion  string
		packages     []string
		capabilities []string
		size         string
		security     string
		maxVulns     int
		limit        int
		output       string
	)

	recommendCmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend base images for a set of requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req := recommend.Requirement{
				Language:       language,
				Version:        langVersion,
				Packages:       packages,
				Capabilities:   capabilities,
				SizePreference: models.SizePreference(size),
				SecurityLevel:  models.SecurityLevel(security),
			}
			if cmd.Flags().Changed("max-vulns") {
				req.MaxVulnerabilities = &maxVulns
			}

			recs, err := a.advisor.Engine().Recommend(cmd.Context(), req)
			if err != nil {
				return err
			}

			return printRecommendations(recs, limit, output)
		},
	}

	recommendCmd.Flags().StringVarP(&language, "language", "l", "", "required language runtime (e.g. python)")
	recommendCmd.Flags().StringVar(&langVersion, "version", "", "required runtime version (e.g. 3.12)")
	recommendCmd.Flags().StringSliceVarP(&packages, "packages", "p", nil, "packages the image should provide")
	recommendCmd.Flags().StringSliceVar(&capabilities, "capabilities", nil, "capabilities the image should provide")
	recommendCmd.Flags().StringVar(&size, "size", "", "size preference: minimal, balanced, or full")
	recommendCmd.Flags().StringVar(&security, "security", "", "security level: standard, high, or maximum")
	recommendCmd.Flags().IntVar(&maxVulns, "max-vulns", 0, "cap total vulnerabilities at query time")
	recommendCmd.Flags().IntVarP(&limit, "limit", "n", 5, "max recommendations to print (0 for all)")
	recommendCmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, or dockerfile")
	_ = recommendCmd.MarkFlagRequired("language")

	rootCmd.AddCommand(recommendCmd)
}

// printRecommendations renders recommendations in the chosen format.
func printRecommendations(recs []recommend.Recommendation, limit int, output string) error {
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	switch output {
	case "text":
		fmt.Println(recommend.FormatRecommendations(recs, 0))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case "dockerfile":
		if len(recs) == 0 {
			return fmt.Errorf("no suitable images found")
		}
		top := recs[0]
		for _, reason := range top.Reasoning {
			fmt.Println("#", reason)
		}
		fmt.Printf("# score: %.2f/1.00\n", top.Score)
		fmt.Printf("FROM %s\n", top.ImageName)
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or dockerfile)", output)
	}
	return nil
}

// joinNonEmpty joins the non-empty strings with the separator.
func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
