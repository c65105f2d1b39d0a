package cmd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/draw2ui/internal/config"
	"github.com/ziadkadry99/draw2ui/internal/generate"
	"github.com/ziadkadry99/draw2ui/internal/orchestrator"
	"github.com/ziadkadry99/draw2ui/internal/preview"
	"github.com/ziadkadry99/draw2ui/internal/progress"
	"github.com/ziadkadry99/draw2ui/internal/raster"
	"github.com/ziadkadry99/draw2ui/internal/sceneimport"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/usage"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

var (
	genPrompt  string
	genTheme   string
	genProject string
	genOut     string
	genPage    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [sketch.excalidraw | image.png]",
	Short: "Generate HTML from a sketch",
	Long: `Sends a sketch to the configured model and prints the generated HTML.
The sketch is a scene file, a PNG or JPEG image, or (with --project and no
file) the drawing stored in a project. With --project the markup is saved to
that project as well. Every generation counts against the daily limit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genPrompt, "prompt", "p", "", "extra instructions for the model")
	generateCmd.Flags().StringVar(&genTheme, "theme", "", "light or dark (default: the saved setting)")
	generateCmd.Flags().StringVar(&genProject, "project", "", "project to generate for and save into")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "write the markup to this file instead of stdout")
	generateCmd.Flags().BoolVar(&genPage, "page", false, "wrap the markup in a standalone HTML page")
	rootCmd.AddCommand(generateCmd)
}

// sceneBoard serves a fixed scene to the orchestrator.
type sceneBoard whiteboard.Scene

func (b sceneBoard) Snapshot() whiteboard.Scene { return whiteboard.Scene(b) }

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && genProject == "" {
		return errors.New("a sketch file or --project is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, projects, limiter, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	gen, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scene whiteboard.Scene
	var image string
	if len(args) == 1 {
		scene, image, err = readSketch(args[0])
		if err != nil {
			return err
		}
	}

	theme, err := resolveTheme(ctx, projects)
	if err != nil {
		return err
	}

	reporter := progress.NewReporter("Generating")
	reporter.Start(-1)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				reporter.Update(-1, "Generating")
			}
		}
	}()

	var html string
	if genProject != "" {
		html, err = generateForProject(ctx, cfg, projects, limiter, gen, scene, image, theme)
	} else {
		html, err = generateOnce(ctx, cfg, limiter, gen, scene, image, theme)
	}
	close(done)
	reporter.Finish()
	if err != nil {
		return err
	}

	if genPage {
		title := ""
		if len(args) == 1 {
			title = sceneimport.ProjectName(args[0])
		}
		html, err = preview.Export(html, title, state.DefaultPreview(), theme)
		if err != nil {
			return err
		}
	}

	if genOut == "" {
		fmt.Println(html)
		return nil
	}
	if err := os.WriteFile(genOut, []byte(html), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", genOut, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", genOut)
	return nil
}

// generateForProject runs the workspace generation flow headlessly: the
// project's stored drawing (or the given scene, which is saved first) is
// generated and the markup stored in the project.
func generateForProject(ctx context.Context, cfg *config.Config, projects *store.Store, limiter *usage.Limiter,
	gen generate.Generator, scene whiteboard.Scene, image string, theme store.Theme) (string, error) {
	data, err := projects.GetProjectData(ctx, genProject)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("project %s not found", genProject)
	}
	if err != nil {
		return "", err
	}

	if len(scene.Elements) > 0 {
		appState := whiteboard.SanitizeAppState(scene.AppState)
		err := projects.UpdateProjectData(ctx, genProject, store.ProjectDataPatch{
			Elements: &scene.Elements,
			AppState: &appState,
		})
		if err != nil {
			return "", fmt.Errorf("saving drawing: %w", err)
		}
	} else {
		scene = whiteboard.Scene{Elements: data.Elements, AppState: data.AppState}
	}

	st := state.New()
	st.Theme.Set(theme)
	st.CurrentProjectID.Set(genProject)

	orch := orchestrator.New(st, sceneBoard(scene), projects, limiter, gen, raster.NewWireframe(cfg.Raster.MaxEdge))
	return orch.Generate(ctx, orchestrator.Input{Prompt: genPrompt, Image: image})
}

func generateOnce(ctx context.Context, cfg *config.Config, limiter *usage.Limiter,
	gen generate.Generator, scene whiteboard.Scene, image string, theme store.Theme) (string, error) {
	status, err := limiter.Check(ctx)
	if err != nil {
		return "", err
	}
	if !status.Allowed {
		return "", orchestrator.ErrQuotaExhausted
	}

	if image == "" {
		if scene.IsEmpty() {
			return "", orchestrator.ErrEmptySketch
		}
		png, err := raster.NewWireframe(cfg.Raster.MaxEdge).Rasterize(ctx, scene)
		if err != nil {
			return "", fmt.Errorf("rasterizing sketch: %w", err)
		}
		image = raster.DataURI(png)
	}

	html, err := gen.Generate(ctx, generate.Request{Image: image, Prompt: genPrompt, Theme: string(theme)})
	if err != nil {
		return "", err
	}
	if err := limiter.Increment(ctx); err != nil {
		log.Printf("generate: recording usage: %v", err)
	}
	return html, nil
}

// readSketch loads a scene file, or a PNG/JPEG image as a data URI.
func readSketch(path string) (whiteboard.Scene, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".excalidraw", ".json":
		scene, err := sceneimport.ReadScene(path)
		return scene, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return whiteboard.Scene{}, "", fmt.Errorf("reading %s: %w", path, err)
	}
	switch mimeType := http.DetectContentType(data); mimeType {
	case "image/png":
		return whiteboard.Scene{}, raster.DataURI(data), nil
	case "image/jpeg":
		return whiteboard.Scene{}, "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
	default:
		return whiteboard.Scene{}, "", fmt.Errorf("%s: unsupported sketch type %s", path, mimeType)
	}
}

func resolveTheme(ctx context.Context, projects *store.Store) (store.Theme, error) {
	if genTheme != "" {
		theme := store.Theme(genTheme)
		if !theme.Valid() {
			return "", fmt.Errorf("invalid theme %q: must be light or dark", genTheme)
		}
		return theme, nil
	}
	settings, err := projects.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.Theme, nil
}
