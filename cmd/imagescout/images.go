package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imagescout/internal/catalog"
	"imagescout/pkg/models"
)

func init() {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Manage the image catalog",
	}

	imagesCmd.AddCommand(imagesListCmd())
	imagesCmd.AddCommand(imagesStatsCmd())
	imagesCmd.AddCommand(imagesLanguagesCmd())
	imagesCmd.AddCommand(imagesIngestCmd())
	imagesCmd.AddCommand(imagesDeleteCmd())

	rootCmd.AddCommand(imagesCmd)
}

func imagesListCmd() *cobra.Command {
	var (
		language string
		search   string
		limit    int
		offset   int
		sortBy   string
		order    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged images",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.catalog.Repository().List(cmd.Context(),
				catalog.ImageFilter{Language: language, Search: search},
				catalog.ListOptions{Limit: limit, Offset: offset, SortBy: sortBy, SortOrder: order},
			)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE (MB)\tVULNS\tBASE OS\tSCANNED")
			for _, img := range result.Items {
				fmt.Fprintf(w, "%s\t%.1f\t%d\t%s\t%s\n",
					img.Name,
					float64(img.SizeBytes)/(1024*1024),
					img.Vulnerabilities.Total,
					img.BaseOSName,
					img.ScannedAt.Format("2006-01-02"),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d of %d images\n", len(result.Items), result.Total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "only images with this detected language")
	cmd.Flags().StringVar(&search, "search", "", "substring match on name or repository")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "max images to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of images to skip")
	cmd.Flags().StringVar(&sortBy, "sort", "name", "sort column: name, size, vulns, or scanned_at")
	cmd.Flags().StringVar(&order, "order", "asc", "sort order: asc or desc")
	return cmd
}

func imagesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog vulnerability statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.catalog.Repository().VulnerabilityStats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Images: %d (%d scanned, %d clean)\n", stats.Images, stats.ScannedImages, stats.CleanImages)
			fmt.Printf("Vulnerabilities: %d total\n", stats.TotalVulns)
			fmt.Printf("  critical: %d\n  high:     %d\n  medium:   %d\n  low:      %d\n",
				stats.Critical, stats.High, stats.Medium, stats.Low)
			return nil
		},
	}
}

func imagesLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "Summarize detected languages across the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.catalog.Repository().LanguageSummary(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LANGUAGE\tIMAGES\tVERIFIED")
			for _, s := range summary {
				fmt.Fprintf(w, "%s\t%d\t%d\n", s.Language, s.Images, s.Verified)
			}
			return w.Flush()
		},
	}
}

func imagesIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Ingest analyzer reports (JSON) into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				var analysis models.ImageAnalysis
				if err := json.Unmarshal(data, &analysis); err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}

				if err := a.catalog.Repository().SaveAnalysis(cmd.Context(), &analysis); err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Printf("Ingested %s\n", analysis.Image)
			}
			return nil
		},
	}
}

func imagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove an image from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.catalog.Repository().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
