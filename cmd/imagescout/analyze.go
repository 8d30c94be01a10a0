package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imagescout/internal/recommend"
	"imagescout/pkg/models"
)

func init() {
	var (
		size     string
		security string
		limit    int
		output   string
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Inspect a cataloged image and suggest alternatives",
		Long: `analyze looks up an image in the catalog, derives requirements from
what was detected inside it, and recommends cataloged images that match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req := recommend.Requirement{
				SizePreference: models.SizePreference(size),
				SecurityLevel:  models.SecurityLevel(security),
			}

			analysis, recs, derived, err := a.advisor.Engine().AnalyzeImage(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			if output == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"image":               args[0],
					"found":               analysis != nil,
					"analysis":            analysis,
					"derived_requirement": derived,
					"recommendations":     recs,
				})
			}

			if analysis == nil {
				fmt.Printf("Image %q is not in the catalog.\n", args[0])
				fmt.Println("Ingest an analyzer report for it first (imagescout images ingest).")
				return nil
			}

			fmt.Printf("Image: %s\n", analysis.Image)
			if derived.Language != "" {
				fmt.Printf("Detected runtime: %s\n", joinNonEmpty(" ", derived.Language, derived.Version))
			}
			fmt.Printf("Size: %.1f MB, vulnerabilities: %d\n",
				float64(analysis.SizeBytes)/(1024*1024), analysis.Vulnerabilities.Total)
			fmt.Println()
			return printRecommendations(recs, limit, output)
		},
	}

	analyzeCmd.Flags().StringVar(&size, "size", "", "size preference: minimal, balanced, or full")
	analyzeCmd.Flags().StringVar(&security, "security", "", "security level: standard, high, or maximum")
	analyzeCmd.Flags().IntVarP(&limit, "limit", "n", 5, "max recommendations to print (0 for all)")
	analyzeCmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(analyzeCmd)
}
