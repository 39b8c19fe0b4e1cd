// Package main is the entry point for the sitecheck application
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/sitecheck/cmd"
	"github.com/joho/godotenv"
)

const (
	envFlag      = "--env"
	envFlagEqual = "--env="
)

func main() {
	envFile, runTUI, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !runTUI {
		// cobra handles --env itself
		cmd.Execute()
		return
	}

	if err := loadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	cmd.InitLogger()
	runInteractive()
}

// parseArgs extracts the env file and reports whether interactive mode
// should run: no arguments, or only --env.
func parseArgs(args []string) (envFile string, runTUI bool, err error) {
	for i, arg := range args {
		if arg == envFlag {
			if i+1 >= len(args) {
				return "", false, fmt.Errorf("%s flag requires a value", envFlag)
			}
			envFile = args[i+1]
			break
		}
		if strings.HasPrefix(arg, envFlagEqual) {
			envFile = arg[len(envFlagEqual):]
			break
		}
	}

	switch {
	case len(args) == 0:
		return envFile, true, nil
	case len(args) == 1 && strings.HasPrefix(args[0], envFlagEqual):
		return envFile, true, nil
	case len(args) == 2 && args[0] == envFlag:
		return envFile, true, nil
	default:
		return envFile, false, nil
	}
}

// loadEnvFile loads the specified environment file
func loadEnvFile(file string) error {
	if file == "" {
		file = ".env"
	}

	if err := godotenv.Load(file); err != nil {
		// If it's the default .env file and it doesn't exist, that's okay
		if file == ".env" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load env file '%s': %w", file, err)
	}

	return nil
}
