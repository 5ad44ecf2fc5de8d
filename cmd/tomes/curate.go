package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/readwell/tomes"
	"github.com/readwell/tomes/pkg/curation"
)

var (
	curateCheck bool

	curateCmd = &cobra.Command{
		Use:   "curate <file.yaml>",
		Short: "Validate and import a concept curation file",
		Long: `Validate a YAML curation file (concepts and typed relationships for
one book) and import it into the concept graph. A file that fails
validation is rejected without importing anything. With --check the file
is only validated.`,
		Args: cobra.ExactArgs(1),
		RunE: runCurate,
	}
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a Parquet snapshot of the library",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	curateCmd.Flags().BoolVar(&curateCheck, "check", false, "Validate only, do not import")
	exportCmd.Flags().StringVar(&exportDir, "dir", "./snapshots", "Directory to write the snapshot under")

	rootCmd.AddCommand(curateCmd)
	rootCmd.AddCommand(exportCmd)
}

func runCurate(cmd *cobra.Command, args []string) error {
	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		var (
			result *curation.ValidationResult
			err    error
		)
		if curateCheck {
			result, err = lib.CheckCuration(args[0])
		} else {
			result, err = lib.Curate(ctx, args[0])
		}
		if result != nil {
			for _, w := range result.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			for _, e := range result.Errors {
				fmt.Printf("error: %s\n", e)
			}
		}
		if err != nil {
			return err
		}
		if curateCheck {
			fmt.Println("Curation file is valid.")
		} else {
			fmt.Println("Curation file imported.")
		}
		return nil
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		dir, err := lib.Export(exportDir)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", dir)
		return nil
	})
}
