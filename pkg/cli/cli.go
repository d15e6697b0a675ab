// Package cli provides the command-line interface for checkbox-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Session backend (webdriver, cdp, playwright, mock)",
		EnvVars: []string{"CHECKBOX_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"CHECKBOX_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Log file path (default: <home>/logs/checkbox-runner.log)",
		EnvVars: []string{"CHECKBOX_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "no-color",
		Usage:   "Disable ANSI colors",
		EnvVars: []string{"NO_COLOR"},
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "checkbox-runner",
		Usage:   "Verify checkbox state in remote browser sessions",
		Version: Version,
		Description: `checkbox-runner resolves checkboxes in flat lists, table rows and
collapsible trees, clicks them and asserts their resulting state.

Examples:
  checkbox-runner run scenarios/
  checkbox-runner --driver cdp run scenarios/checkboxes.yaml
  checkbox-runner run scenarios/ -e BASE=https://staging.example.com --parallel 4
  checkbox-runner validate scenarios/`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
