package cmd

import (
	"fmt"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/infra"
	"github.com/spf13/cobra"
)

// chromeCmd manages the headless Chrome container outside of a run, so
// several runs can share one browser through CHROME_REMOTE_URL.
var chromeCmd = &cobra.Command{
	Use:   "chrome",
	Short: "Manage the headless Chrome container",
	Long: `Start, stop and inspect the ` + config.ChromeContainerImage + ` container.

Example:
  sitecheck chrome start
  CHROME_REMOTE_URL=ws://127.0.0.1:9222 sitecheck run
  sitecheck chrome stop`,
}

var chromeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the container and wait for DevTools",
	RunE: func(cmd *cobra.Command, _ []string) error {
		container := infra.NewChromeContainer(Logger)
		if err := container.Start(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("%s=%s\n", config.EnvChromeRemoteURL, container.RemoteURL())

		return nil
	},
}

var chromeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the container",
	RunE: func(_ *cobra.Command, _ []string) error {
		return infra.NewChromeContainer(Logger).Stop()
	},
}

var chromeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the container is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		container := infra.NewChromeContainer(Logger)

		running, err := container.IsRunning(cmd.Context())
		if err != nil {
			return err
		}

		if running {
			fmt.Printf("running (%s)\n", container.RemoteURL())
		} else {
			fmt.Println("stopped")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(chromeCmd)
	chromeCmd.AddCommand(chromeStartCmd, chromeStopCmd, chromeStatusCmd)
}
