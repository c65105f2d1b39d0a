package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/draw2ui/internal/progress"
	"github.com/ziadkadry99/draw2ui/internal/sceneimport"
)

var (
	importInclude []string
	importExclude []string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Import scene files as projects",
	Long: `Finds scene files under dir (default: the working directory) and creates
one project per file, named after the file. Patterns support ** globs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDir := "."
		if len(args) == 1 {
			rootDir = args[0]
		}

		files, err := sceneimport.Discover(sceneimport.DiscoverConfig{
			RootDir: rootDir,
			Include: importInclude,
			Exclude: importExclude,
		})
		if err != nil {
			return fmt.Errorf("finding scene files: %w", err)
		}

		if verbose || importDryRun {
			for _, f := range files {
				fmt.Fprintf(os.Stderr, "  %s (%d bytes)\n", f.RelPath, f.Size)
			}
		}
		if len(files) == 0 {
			fmt.Println("No scene files found.")
			return nil
		}
		if importDryRun {
			fmt.Printf("%d files would be imported\n", len(files))
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, projects, _, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		importer := sceneimport.NewImporter(projects, progress.NewReporter("Importing"))
		results, err := importer.Import(ctx, files)

		imported, failed := 0, 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "  failed %s: %v\n", res.File.RelPath, res.Err)
				continue
			}
			imported++
			if verbose {
				fmt.Fprintf(os.Stderr, "  %s -> %s (%s)\n", res.File.RelPath, res.Project.Name, res.Project.ID)
			}
		}
		fmt.Printf("Imported %d of %d files", imported, len(files))
		if failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Println()
		return err
	},
}

func init() {
	importCmd.Flags().StringSliceVar(&importInclude, "include", nil, "glob patterns to include (default **/*.excalidraw)")
	importCmd.Flags().StringSliceVar(&importExclude, "exclude", nil, "glob patterns to exclude")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "list matching files without importing")
	rootCmd.AddCommand(importCmd)
}
