package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's generation quota and past usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, _, limiter, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		ctx := context.Background()
		status, err := limiter.Check(ctx)
		if err != nil {
			return err
		}
		history, err := limiter.History(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Today: %d of %d generations used, %d remaining\n", status.Used, status.Limit, status.Remaining)
		if len(history) == 0 {
			return nil
		}

		days := make([]string, 0, len(history))
		for day := range history {
			days = append(days, day)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(days)))

		fmt.Println("\nHistory:")
		for _, day := range days {
			fmt.Printf("  %s  %d\n", day, history[day])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
