package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/draw2ui/internal/api"
	"github.com/ziadkadry99/draw2ui/internal/events"
	"github.com/ziadkadry99/draw2ui/internal/generate"
	"github.com/ziadkadry99/draw2ui/internal/orchestrator"
	"github.com/ziadkadry99/draw2ui/internal/preview"
	"github.com/ziadkadry99/draw2ui/internal/raster"
	"github.com/ziadkadry99/draw2ui/internal/server"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
	"github.com/ziadkadry99/draw2ui/internal/workspace"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the draw2ui workspace server",
	Long: `Starts the local HTTP server: project and whiteboard APIs, the generation
endpoint, live preview pages and a WebSocket stream of the workspace state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		backend, projects, limiter, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		// The local endpoint always calls the models in-process; a configured
		// remote endpoint only replaces the orchestrator's generator.
		service, err := buildService(cfg)
		if err != nil {
			return err
		}
		gen, err := buildGenerator(cfg)
		if err != nil {
			return err
		}
		if len(service.Candidates()) == 0 && cfg.Generation.Endpoint == "" {
			fmt.Fprintln(os.Stderr, "Warning: no model credentials found; generation requests will fail.")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st := state.New()
		canvas := whiteboard.NewMemoryCanvas()
		board := whiteboard.NewAdapter(projects,
			whiteboard.WithAutosaveDelay(cfg.Whiteboard.AutosaveDelay),
			whiteboard.WithTheme(st.Theme.Get),
		)
		ws := workspace.New(projects, st, board, canvas)
		defer ws.Close()
		if err := ws.Load(ctx); err != nil {
			return fmt.Errorf("loading workspace: %w", err)
		}

		orch := orchestrator.New(st, board, projects, limiter, gen, raster.NewWireframe(cfg.Raster.MaxEdge))

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
		}, backend)

		hub := events.NewHub(st, canvas, canvas, events.WithOriginCheck(srv.CheckOrigin))
		defer hub.Close()
		hub.RegisterRoutes(srv.StreamRouter())

		r := srv.Router()
		generate.RegisterRoutes(r, service)
		preview.RegisterRoutes(r, projects, st)
		api.RegisterRoutes(r, api.RoutesDeps{
			Store:        projects,
			Workspace:    ws,
			Orchestrator: orch,
			Usage:        limiter,
			Canvas:       canvas,
		})

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			hub.Close()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "draw2ui server v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Storage: %s\n", storageLabel(cfg))
		fmt.Fprintf(os.Stderr, "  Projects: %d\n", len(st.Projects.Get()))
		if cfg.Generation.Endpoint != "" {
			fmt.Fprintf(os.Stderr, "  Generation endpoint: %s\n", cfg.Generation.Endpoint)
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
