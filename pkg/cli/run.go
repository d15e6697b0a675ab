package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devicelab-dev/checkbox-runner/pkg/config"
	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/executor"
	"github.com/devicelab-dev/checkbox-runner/pkg/logger"
	"github.com/devicelab-dev/checkbox-runner/pkg/report"
	"github.com/devicelab-dev/checkbox-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run checkbox scenarios",
	ArgsUsage: "[scenario-file-or-folder]...",
	Description: `Run scenario files against a browser session.

With no arguments the scenarios listed in config.yaml are run.

Reports are generated in the output directory:
  - Default: <home>/reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/

Session settings come from the environment (a .env file in the working
directory is loaded first): LT_USERNAME, LT_ACCESSKEY, CHECKBOX_HUB_URL,
CHECKBOX_BROWSER_VERSION, CHECKBOX_PLATFORM, CHECKBOX_BUILD,
CHECKBOX_CDP_URL, CHECKBOX_PLAYWRIGHT_WS.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to workspace config.yaml",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables for ${...} expansion (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},
		&cli.StringFlag{
			Name:    "browser",
			Usage:   "Browser name (Chrome, Firefox, MicrosoftEdge, Safari)",
			EnvVars: []string{config.EnvBrowser},
		},
		&cli.BoolFlag{
			Name:    "headless",
			Usage:   "Run local browsers headless (cdp, playwright)",
			Value:   true,
			EnvVars: []string{config.EnvHeadless},
		},
		&cli.BoolFlag{
			Name:  "install",
			Usage: "Download the Playwright driver and browser before running",
		},
		&cli.IntFlag{
			Name:    "parallel",
			Usage:   "Run up to N sessions at once",
			EnvVars: []string{"CHECKBOX_PARALLEL"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Wait budget per condition (default 30s)",
			EnvVars: []string{"CHECKBOX_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "Wait poll interval (default 500ms)",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining scenarios after the first failure",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
	},
	Action: runScenarios,
}

// RunConfig holds the complete run configuration.
type RunConfig struct {
	// Paths
	ScenarioPaths []string
	ConfigPath    string

	// Environment
	Env map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string
	LogFile   string
	Verbose   bool

	// Execution
	Parallel     int
	StopOnFail   bool
	Timeout      time.Duration
	PollInterval time.Duration
	Install      bool

	Session config.SessionConfig
}

func runScenarios(c *cli.Context) error {
	if c.Bool("no-color") {
		color.NoColor = true
	}
	if err := config.LoadDotEnv("."); err != nil {
		return err
	}

	cfg, err := buildRunConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return executeRun(ctx, cfg, c.App.Writer)
}

// buildRunConfig merges flags over the workspace config over the
// environment defaults.
func buildRunConfig(c *cli.Context) (*RunConfig, error) {
	var ws *config.Config
	var wsDir string
	var err error
	if path := c.String("config"); path != "" {
		ws, err = config.Load(path)
		wsDir = filepath.Dir(path)
	} else {
		ws, err = config.LoadFromDir(".")
		wsDir = "."
	}
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("failed to load config").WithCause(err)
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return nil, err
	}

	cfg := &RunConfig{
		ScenarioPaths: c.Args().Slice(),
		ConfigPath:    c.String("config"),
		Env:           mergeEnv(ws.Env, parseEnvVars(c.StringSlice("env"))),
		IncludeTags:   ws.IncludeTags,
		ExcludeTags:   ws.ExcludeTags,
		OutputDir:     outputDir,
		LogFile:       c.String("log-file"),
		Verbose:       c.Bool("verbose"),
		Parallel:      ws.Parallel,
		StopOnFail:    c.Bool("stop-on-fail"),
		Timeout:       ws.WaitTimeout(),
		PollInterval:  ws.WaitInterval(),
		Install:       c.Bool("install"),
		Session:       config.FromEnv(nil),
	}

	if len(cfg.ScenarioPaths) == 0 {
		cfg.ScenarioPaths, err = expandPatterns(wsDir, ws.Scenarios)
		if err != nil {
			return nil, err
		}
	}
	if len(cfg.ScenarioPaths) == 0 {
		return nil, fmt.Errorf("no scenarios given and none listed in config.yaml")
	}

	if c.IsSet("include-tags") {
		cfg.IncludeTags = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		cfg.ExcludeTags = c.StringSlice("exclude-tags")
	}
	if c.IsSet("parallel") {
		cfg.Parallel = c.Int("parallel")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("poll-interval") {
		cfg.PollInterval = c.Duration("poll-interval")
	}

	sc := &cfg.Session
	if ws.Driver != "" {
		sc.Driver = ws.Driver
	}
	if c.IsSet("driver") {
		sc.Driver = c.String("driver")
	}
	if ws.Browser != "" {
		sc.Browser = ws.Browser
	}
	if c.IsSet("browser") {
		sc.Browser = c.String("browser")
	}
	if c.IsSet("headless") {
		sc.Headless = c.Bool("headless")
	}
	sc.Driver = strings.ToLower(sc.Driver)
	sc.Capabilities = ws.Capabilities

	return cfg, nil
}

// expandPatterns resolves config.yaml scenario globs relative to dir.
func expandPatterns(dir string, patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, core.ErrInvalidConfig.WithMessagef("bad scenario pattern %q", p).WithCause(err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeRun(ctx context.Context, cfg *RunConfig, w io.Writer) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(config.GetLogsDir(), "checkbox-runner.log")
	}
	var logOpts []logger.Option
	if cfg.Verbose {
		logOpts = append(logOpts, logger.WithConsole(os.Stderr), logger.WithVerbose(true))
	}
	if err := logger.Init(logPath, logOpts...); err != nil {
		fmt.Fprintf(w, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	log := logger.L()

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Driver: %s", cfg.Session.Driver)

	// 3. Validate and parse scenarios
	result := validator.New(cfg.IncludeTags, cfg.ExcludeTags).Validate(cfg.ScenarioPaths...)
	if !result.IsValid() {
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  %s %v\n", color.RedString("✗"), err)
			logger.Error("validation: %v", err)
		}
		return cli.Exit(fmt.Sprintf("%d validation error(s)", len(result.Errors)), 1)
	}
	if len(result.Scenarios) == 0 {
		return cli.Exit("no scenarios match the tag filters", 1)
	}
	logger.Info("Validated %d scenario(s) in %d file(s)", len(result.Scenarios), len(result.Files))

	// 4. Open sessions through the configured backend
	factory, err := newSessionFactory(cfg.Session, cfg.Install, log)
	if err != nil {
		logger.Error("Session configuration invalid: %v", err)
		return err
	}

	runner := executor.New(factory, executor.RunnerConfig{
		OutputDir:       cfg.OutputDir,
		Parallelism:     cfg.Parallel,
		StopOnFail:      cfg.StopOnFail,
		Timeout:         cfg.Timeout,
		PollInterval:    cfg.PollInterval,
		Env:             cfg.Env,
		RunnerVersion:   Version,
		DriverName:      cfg.Session.Driver,
		Logger:          log,
		OnScenarioStart: progressStart(w),
	})

	fmt.Fprintf(w, "Running %d scenario(s) on %s\n", len(result.Scenarios), cfg.Session.Driver)
	res, err := runner.Run(ctx, result.Scenarios)
	if res == nil {
		logger.Error("Run failed: %v", err)
		return err
	}
	if err != nil {
		fmt.Fprintf(w, "Warning: %v\n", err)
	}
	log.Info("run finished",
		zap.String("status", string(res.Status)),
		zap.Int("passed", res.Passed),
		zap.Int("assertionFailed", res.AssertionFailed),
		zap.Int("infrastructureError", res.InfrastructureError),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", res.Duration))

	// 5. Summary and report location
	report.PrintSummary(w, &res.Index)
	fmt.Fprintf(w, "\n  Report: %s\n", res.ReportPath)

	if ctx.Err() != nil {
		return cli.Exit("run interrupted", 130)
	}
	if res.Failed() {
		return cli.Exit("", 1)
	}
	return nil
}

func progressStart(w io.Writer) func(idx, total int, name string) {
	cyan := color.New(color.FgCyan).SprintFunc()
	return func(idx, total int, name string) {
		fmt.Fprintf(w, "  %s %s\n", cyan(fmt.Sprintf("[%d/%d]", idx+1, total)), name)
	}
}

// parseEnvVars parses KEY=VALUE pairs. Entries without '=' are ignored.
func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// mergeEnv returns base overlaid with override.
func mergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
