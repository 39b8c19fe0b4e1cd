package cmd

import (
	"fmt"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the Playwright driver with Firefox and WebKit",
	Long: `Download the Playwright driver and the Firefox and WebKit builds it drives.
Chromium is driven through chromedp and uses the local Chrome or the
container instead.

Example:
  sitecheck install
  sitecheck install --playwright-dir .cache/playwright`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		opts := s.playwright()
		Logger.WithField("dir", opts.DriverDirectory).Info("Installing Playwright browsers")

		if err := browser.InstallPlaywright(opts, browser.Firefox, browser.WebKit); err != nil {
			return err
		}

		fmt.Println("firefox and webkit installed")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().String("playwright-dir", "", "Playwright driver and browser directory (empty uses its cache)")
	installCmd.Flags().String("profile", config.DefaultProfileFile, "Execution profile")
}
