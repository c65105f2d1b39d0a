package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/draw2ui/internal/store"
)

var assumeYes bool

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage draw2ui projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, projects *store.Store) error {
			list, err := projects.ListProjects(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No projects yet. Run `draw2ui projects create` or `draw2ui import`.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
			for _, p := range store.SortByRecent(list) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		})
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args, " "))
		return withStore(func(ctx context.Context, projects *store.Store) error {
			if name == "" {
				list, err := projects.ListProjects(ctx)
				if err != nil {
					return err
				}
				name = fmt.Sprintf("Project %d", len(list)+1)
			}
			p, err := projects.CreateProject(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var projectsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")
		return withStore(func(ctx context.Context, projects *store.Store) error {
			p, err := projects.RenameProject(ctx, args[0], name)
			if err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %s\n", p.ID, p.Name)
			return nil
		})
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project and its drawing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		return withStore(func(ctx context.Context, projects *store.Store) error {
			data, err := projects.GetProjectData(ctx, id)
			if err != nil {
				return err
			}

			if !assumeYes {
				label := fmt.Sprintf("Delete project %s", id)
				if data.GeneratedHTML != "" {
					label += " and its generated UI"
				}
				prompt := promptui.Prompt{Label: label, IsConfirm: true}
				if _, err := prompt.Run(); err != nil {
					if errors.Is(err, promptui.ErrAbort) {
						fmt.Println("Aborted.")
						return nil
					}
					return err
				}
			}

			if err := projects.DeleteProject(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", id)
			return nil
		})
	},
}

// withStore opens the configured store for a single command.
func withStore(fn func(ctx context.Context, projects *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, projects, _, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(context.Background(), projects)
}

func init() {
	projectsDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "delete without confirmation")
	projectsCmd.AddCommand(projectsListCmd, projectsCreateCmd, projectsRenameCmd, projectsDeleteCmd)
	rootCmd.AddCommand(projectsCmd)
}
