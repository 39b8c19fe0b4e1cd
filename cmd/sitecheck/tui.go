package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/interactive"
	"github.com/ethpandaops/sitecheck/internal/suite"
)

func runInteractive() {
	fmt.Println("sitecheck - Interactive Mode")
	fmt.Println("============================")
	fmt.Println()

	for {
		options := []interactive.MenuOption{
			{
				Name:        "🧪 Run Tests",
				Description: "Run suites across the project matrix",
				Action:      runTestsInteractive,
			},
			{
				Name:        "📊 Reports",
				Description: "Generate the dashboard and compatibility matrix",
				Action:      showReportMenu,
			},
			{
				Name:        "🐳 Chrome Container",
				Description: "Start, stop and inspect the headless Chrome container",
				Action:      showChromeMenu,
			},
			{
				Name:        "🧭 Projects",
				Description: "List the project matrix",
				Action: func() error {
					return runCLICommand("projects")
				},
			},
			{
				Name:        "📋 Show Config",
				Description: "Display current environment configuration",
				Action: func() error {
					return runCLICommand("show-config")
				},
			},
		}

		if err := interactive.ShowMenu("What would you like to do?", options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return
			}
			log.Fatal(err)
		}

		fmt.Println()
	}
}

func runTestsInteractive() error {
	suites, err := interactive.MultiSelect("Select suites (none selects all):", suite.Names())
	if err != nil {
		fmt.Println("Selection canceled.")
		interactive.PauseForEnter()
		return nil
	}

	profilePath := os.Getenv(config.EnvProfile)
	if profilePath == "" {
		profilePath = config.DefaultProfileFile
	}

	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()
		return nil
	}

	names := make([]string, 0, len(profile.Projects))
	for _, p := range profile.Projects {
		names = append(names, p.Name)
	}

	projects, err := interactive.MultiSelect("Select projects (none selects all):", names)
	if err != nil {
		fmt.Println("Selection canceled.")
		interactive.PauseForEnter()
		return nil
	}

	grep, err := interactive.Input("Filter tests by regexp (empty runs all):", "")
	if err != nil {
		fmt.Println("Selection canceled.")
		interactive.PauseForEnter()
		return nil
	}

	args := append([]string{"run"}, suites...)
	for _, p := range projects {
		args = append(args, "--project", p)
	}

	if grep != "" {
		args = append(args, "--grep", grep)
	}

	if interactive.Confirm("Run Chromium in a container?") {
		args = append(args, "--chrome-container")
	}

	if interactive.Confirm("Enable verbose output?") {
		args = append(args, "--verbose")
	}

	return runCLICommand(args...)
}

func showReportMenu() error {
	for {
		options := []interactive.MenuOption{
			{
				Name:        "Dashboard",
				Description: "Render results.json into the results dashboard",
				Action: func() error {
					return runCLICommand("report", "dashboard")
				},
			},
			{
				Name:        "Compatibility",
				Description: "Write the browser compatibility matrix",
				Action: func() error {
					args := []string{"report", "compat"}
					if interactive.Confirm("Probe capabilities against the live site?") {
						args = append(args, "--probe")
					}
					return runCLICommand(args...)
				},
			},
			{
				Name:        "All",
				Description: "Generate both reports",
				Action: func() error {
					return runCLICommand("report", "all")
				},
			},
		}

		fmt.Println("\n📊 Reports")
		fmt.Println("==========")
		if err := interactive.ShowMenu("Which report?", options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				return nil // Return to main menu
			}
			return err
		}
	}
}

func showChromeMenu() error {
	for {
		options := []interactive.MenuOption{
			{
				Name:        "Start",
				Description: "Start " + config.ChromeContainerImage,
				Action: func() error {
					return runCLICommand("chrome", "start")
				},
			},
			{
				Name:        "Stop",
				Description: "Stop and remove the container",
				Action: func() error {
					if !interactive.Confirm("Stop the Chrome container? Runs using it will fail.") {
						fmt.Println("Stop canceled.")
						interactive.PauseForEnter()
						return nil
					}
					return runCLICommand("chrome", "stop")
				},
			},
			{
				Name:        "Status",
				Description: "Check whether the container is running",
				Action: func() error {
					return runCLICommand("chrome", "status")
				},
			},
		}

		fmt.Println("\n🐳 Chrome Container")
		fmt.Println("===================")
		if err := interactive.ShowMenu("What would you like to do?", options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				return nil // Return to main menu
			}
			return err
		}
	}
}

// runCLICommand re-runs this binary with args so every menu action behaves
// exactly like its command line form.
func runCLICommand(args ...string) error {
	binaryPath, err := os.Executable()
	if err != nil {
		fmt.Printf("\n❌ Cannot locate the sitecheck binary: %v\n", err)
		interactive.PauseForEnter()
		return nil
	}

	fmt.Printf("\n🚀 Running: sitecheck %v\n\n", args)

	// #nosec G204 -- binaryPath is this executable and args are controlled by menu selections
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		fmt.Printf("\n❌ Command failed: %v\n", err)
	}

	interactive.PauseForEnter()
	return nil
}
