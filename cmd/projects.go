package cmd

import (
	"fmt"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/harness/table"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the project matrix of the execution profile",
	Long: `Lists every project of the execution profile with its engine and emulated device.
Projects on an engine without a driver are marked as skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		projects, err := s.profile.ResolvedProjects(nil)
		if err != nil {
			return err
		}

		fmt.Print(table.NewProjectsFormatter(table.NewRenderer()).Format(projects))

		return nil
	},
}

func init() {
	projectsCmd.Flags().String("profile", config.DefaultProfileFile, "Execution profile")
	rootCmd.AddCommand(projectsCmd)
}
