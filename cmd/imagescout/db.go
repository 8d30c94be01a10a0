package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"imagescout/internal/catalog"
)

func init() {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Export, restore, or reset the catalog database",
	}

	dbCmd.AddCommand(dbExportCmd())
	dbCmd.AddCommand(dbRestoreCmd())
	dbCmd.AddCommand(dbResetCmd())

	rootCmd.AddCommand(dbCmd)
}

func dbExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog to a YAML snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snapshot, err := catalog.Export(cmd.Context(), a.catalog.Repository())
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("imagescout-catalog-%s.yaml", time.Now().Format("20060102-150405"))
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := snapshot.WriteTo(f); err != nil {
				return err
			}
			fmt.Printf("Exported %d images to %s\n", len(snapshot.Images), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default imagescout-catalog-{timestamp}.yaml)")
	return cmd
}

func dbRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore FILE",
		Short: "Restore the catalog from a YAML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			snapshot, err := catalog.ReadSnapshot(f)
			if err != nil {
				return err
			}

			restored, err := catalog.Restore(cmd.Context(), a.catalog.Repository(), snapshot)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d images from %s\n", restored, args[0])
			return nil
		},
	}
}

func dbResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the catalog database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to delete the database without --force")
			}

			// Resolve the path the same way openApp would, without opening
			// the database first.
			path, err := databasePath(cmd)
			if err != nil {
				return err
			}

			if err := os.Remove(path); err != nil {
				if os.IsNotExist(err) {
					fmt.Printf("No database at %s\n", path)
					return nil
				}
				return err
			}
			// WAL side files are harmless to leave behind but tidy to remove.
			os.Remove(path + "-wal")
			os.Remove(path + "-shm")

			fmt.Printf("Deleted %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}
