package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/checkbox-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check scenario files without opening a session",
	ArgsUsage: "<scenario-file-or-folder>...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one scenario file or folder is required")
	}
	if c.Bool("no-color") {
		color.NoColor = true
	}

	v := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	result := v.Validate(c.Args().Slice()...)

	w := c.App.Writer
	if result.IsValid() {
		fmt.Fprintf(w, "%s %d scenario(s) in %d file(s)\n",
			color.GreenString("valid:"), len(result.Scenarios), len(result.Files))
		return nil
	}

	for _, err := range result.Errors {
		fmt.Fprintf(w, "  %s %v\n", color.RedString("✗"), err)
	}
	return cli.Exit(fmt.Sprintf("%d validation error(s)", len(result.Errors)), 1)
}
