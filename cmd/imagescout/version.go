package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagescout/internal/version"
)

func init() {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Info())
		},
	}

	rootCmd.AddCommand(versionCmd)
}
