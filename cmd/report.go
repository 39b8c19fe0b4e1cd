package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/harness/table"
	"github.com/ethpandaops/sitecheck/internal/infra"
	"github.com/ethpandaops/sitecheck/internal/probe"
	"github.com/ethpandaops/sitecheck/internal/report"
	"github.com/ethpandaops/sitecheck/internal/suite"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = time.Minute

var (
	errNoChromiumProject = errors.New("profile has no chromium project to probe with")
	errOutWithAll        = errors.New("--out names a single file and cannot be used with report all")
)

var (
	reportResults   string
	reportOut       string
	reportNoMinify  bool
	compatProbe     bool
	compatContainer bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate HTML reports",
	Long: `Generate the self-contained HTML reports.

  dashboard  results dashboard built from results.json
  compat     browser compatibility matrix
  all        both of the above`,
}

var reportDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render results.json into the results dashboard",
	Long: `Reads results.json and writes the results dashboard. A missing results file
renders an empty dashboard.

Example:
  sitecheck report dashboard
  sitecheck report dashboard --results test-results/results.json --out report.html`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		return generateDashboard(s)
	},
}

var reportCompatCmd = &cobra.Command{
	Use:   "compat",
	Short: "Write the browser compatibility matrix",
	Long: `Writes the browser compatibility matrix. With --probe the capability probes run
against the live site in Chromium and their results back the compatibility figure.

Example:
  sitecheck report compat
  sitecheck report compat --probe --base-url http://localhost:4173`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		return generateCompat(cmd.Context(), s)
	},
}

var reportAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Generate both reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if reportOut != "" {
			return errOutWithAll
		}

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		// Each generator owns a different output file.
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error { return generateDashboard(s) })
		g.Go(func() error { return generateCompat(ctx, s) })

		return g.Wait()
	},
}

func reportWriter() *report.Writer {
	return report.NewWriter(Logger, !reportNoMinify)
}

func generateDashboard(s *settings) error {
	resultsPath := reportResults
	if resultsPath == "" {
		resultsPath = s.cfg.ResultsPath()
	}

	out := reportOut
	if out == "" {
		out = s.cfg.DashboardPath()
	}

	run, err := report.NewDashboard(Logger, reportWriter()).Generate(resultsPath, out)
	if err != nil {
		return err
	}

	colors := table.NewColorHelper()
	fmt.Printf("%s %s (%d tests, %s%% passed)\n",
		colors.Success("✓ Dashboard written to"), out, run.Stats.Total, run.PassRate())

	return nil
}

func generateCompat(ctx context.Context, s *settings) error {
	out := reportOut
	if out == "" {
		out = s.cfg.CompatibilityPath()
	}

	projects, err := s.profile.ResolvedProjects(nil)
	if err != nil {
		return err
	}

	in := report.CompatInput{
		Projects:      projects,
		MobileDevices: len(suite.MobileDevices),
	}

	if compatProbe {
		project, err := chromiumProject(projects)
		if err != nil {
			return err
		}

		probes, err := sweepProbes(ctx, Logger, s, project)
		if err != nil {
			return fmt.Errorf("probing capabilities: %w", err)
		}

		in.Probes = probes
		in.ProbeEngine = fmt.Sprintf("%s, %s", project.Engine, project.Device.Name)

		printProbes(probes)
	}

	if err := report.NewCompat(Logger, reportWriter()).Generate(in, out); err != nil {
		return err
	}

	fmt.Printf("%s %s\n", table.NewColorHelper().Success("✓ Compatibility report written to"), out)

	return nil
}

func chromiumProject(projects []config.ResolvedProject) (config.ResolvedProject, error) {
	for _, p := range projects {
		if p.Engine == browser.Chromium {
			return p, nil
		}
	}

	return config.ResolvedProject{}, errNoChromiumProject
}

// sweepProbes loads the home page of the site in a fresh Chromium context
// and runs every capability probe against it.
func sweepProbes(ctx context.Context, log logrus.FieldLogger, s *settings, project config.ResolvedProject) (map[string]bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	opts := browser.ChromeOptions{
		ExecPath:  s.cfg.ChromeBin,
		RemoteURL: s.cfg.ChromeRemoteURL,
		Headless:  s.cfg.Headless,
	}

	if compatContainer {
		container := infra.NewChromeContainer(log)
		if err := container.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting chrome container: %w", err)
		}
		defer func() { _ = container.Stop() }()

		opts.RemoteURL = container.RemoteURL()
	}

	driver, err := browser.NewChromeDriver(log, opts)
	if err != nil {
		return nil, err
	}
	defer driver.Close()

	bctx, err := driver.NewContext(ctx, browser.Options{Device: project.Device})
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(ctx, s.cfg.BaseURL+"/", browser.Load); err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.cfg.BaseURL, err)
	}

	return probe.Features.Sweep(ctx, page), nil
}

func printProbes(probes map[string]bool) {
	colors := table.NewColorHelper()

	supported := 0
	rows := make([][]string, 0, len(probe.Features))
	for _, p := range probe.Features {
		status := colors.Failure("✗ missing")
		if probes[p.Key] {
			status = colors.Success("✓ supported")
			supported++
		}
		rows = append(rows, []string{p.Name, status})
	}

	table.NewRenderer().Write(os.Stdout, table.Section{
		Title:   "Capability Probes",
		Columns: []table.Column{{Header: "Feature"}, {Header: "Status"}},
		Rows:    rows,
		Footer:  []string{"Supported", fmt.Sprintf("%d/%d", supported, len(probe.Features))},
	})
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportDashboardCmd, reportCompatCmd, reportAllCmd)

	reportCmd.PersistentFlags().StringVar(&reportOut, "out", "", "Output file (defaults to the results directory)")
	reportCmd.PersistentFlags().BoolVar(&reportNoMinify, "no-minify", false, "Write unminified HTML")
	reportCmd.PersistentFlags().String("results-dir", config.DefaultResultsDir, "Results and report directory")
	reportCmd.PersistentFlags().String("profile", config.DefaultProfileFile, "Execution profile")

	reportDashboardCmd.Flags().StringVar(&reportResults, "results", "", "results.json to read (defaults to the results directory)")

	for _, c := range []*cobra.Command{reportCompatCmd, reportAllCmd} {
		c.Flags().BoolVar(&compatProbe, "probe", false, "Probe capabilities against the live site in Chromium")
		c.Flags().BoolVar(&compatContainer, "chrome-container", false, "Probe in a "+config.ChromeContainerImage+" container")
		c.Flags().String("base-url", config.DefaultBaseURL, "Base URL of the site under test")
		c.Flags().Bool("headless", true, "Run the browser headless")
	}
}
