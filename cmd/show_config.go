package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/sitecheck/internal/harness/table"
	"github.com/spf13/cobra"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Display current environment configuration",
	Long:  `Shows the configuration resolved from environment variables, the .env file and the execution profile.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return fmt.Errorf("failed to show config: %w", err)
		}

		return showConfig(s)
	},
}

func showConfig(s *settings) error {
	fmt.Println(s.cfg.String())
	fmt.Printf("Effective Workers:  %d\n", s.workers())
	fmt.Printf("Effective Retries:  %d\n", s.retries())

	if ws := s.profile.WebServer; ws != nil {
		fmt.Printf("Web Server:         %s (%s, reuse=%t)\n", ws.Command, ws.URL, ws.ReuseExisting(s.cfg.CI))
	}

	projects, err := s.profile.ResolvedProjects(nil)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, table.NewProjectsFormatter(table.NewRenderer()).Format(projects))

	return nil
}

func init() {
	showConfigCmd.Flags().String("profile", "", "Execution profile (defaults to SITECHECK_PROFILE or sitecheck.yaml)")
	rootCmd.AddCommand(showConfigCmd)
}
