package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/draw2ui/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "draw2ui",
	Short: "Turn whiteboard sketches into HTML user interfaces",
	Long: `draw2ui hosts a local whiteboard workspace where sketches are sent to a
vision-capable model and returned as Tailwind HTML. Projects, drawings and
generated markup are kept in a local store and exposed to AI agents via MCP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// API keys usually live in a .env next to the config.
		if err := godotenv.Load(); err != nil && verbose {
			log.Println("No .env file found, using environment variables")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
