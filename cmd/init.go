package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/draw2ui/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize draw2ui configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the model provider, storage backend and limits, and writes a .draw2ui.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
