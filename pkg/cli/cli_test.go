package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/checkbox-runner/pkg/config"
	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/report"
)

const demoYAML = `
name: single checkbox
url: https://www.lambdatest.com/selenium-playground/checkbox-demo
tags: [smoke]
target:
  id: isAgeSelected
expect:
  selected: true
  text:
    id: txtAge
    equals: Success - Check box is checked
---
name: multiple checkboxes
url: https://www.lambdatest.com/selenium-playground/checkbox-demo
target:
  className: checkbox-list-item
interaction: clickAll
reclickIndex: 1
expect:
  selected: false
---
name: tree
url: https://www.grapecity.com/componentone/demos/aspnet/ControlExplorer/C1TreeView/CheckBox.aspx
tags: [tree]
target:
  hierarchy:
    sections: [Folder 1, Folder 2]
    leaf: Folder 2
expect:
  enabled: true
  selected: false
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testApp returns the real app with exit handling disabled so failures come
// back as errors instead of terminating the test binary.
func testApp(out *bytes.Buffer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestResolveOutputDir_Default(t *testing.T) {
	config.ResetHome()
	t.Cleanup(config.ResetHome)
	t.Setenv("CHECKBOX_RUNNER_HOME", "/opt/checkbox")

	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(dir) != "/opt/checkbox/reports" {
		t.Errorf("expected /opt/checkbox/reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	if _, err := resolveOutputDir("", true); err == nil {
		t.Error("expected error when flatten is used without output")
	}
}

func TestParseEnvVars(t *testing.T) {
	got := parseEnvVars([]string{"USER=test", "URL=https://x/?a=b", "BROKEN"})
	if len(got) != 2 {
		t.Fatalf("expected 2 vars, got %v", got)
	}
	if got["USER"] != "test" {
		t.Errorf("USER = %q", got["USER"])
	}
	if got["URL"] != "https://x/?a=b" {
		t.Errorf("URL = %q", got["URL"])
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv(map[string]string{"A": "1", "B": "2"}, map[string]string{"B": "3"})
	if got["A"] != "1" || got["B"] != "3" {
		t.Errorf("unexpected merge result %v", got)
	}
}

func TestPlaywrightBrowser(t *testing.T) {
	cases := map[string]string{
		"Chrome":        "chromium",
		"MicrosoftEdge": "chromium",
		"Firefox":       "firefox",
		"Safari":        "webkit",
		"":              "chromium",
	}
	for in, want := range cases {
		if got := playwrightBrowser(in); got != want {
			t.Errorf("playwrightBrowser(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewSessionFactory_UnknownDriver(t *testing.T) {
	_, err := newSessionFactory(config.SessionConfig{Driver: "telnet"}, false, nil)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected invalid config, got %v", err)
	}
}

func TestNewSessionFactory_LambdaTestNeedsCredentials(t *testing.T) {
	_, err := newSessionFactory(config.SessionConfig{Driver: config.DriverWebDriver, HubURL: config.DefaultHubURL}, false, nil)
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("expected missing required, got %v", err)
	}
}

func TestNewSessionFactory_Mock(t *testing.T) {
	f, err := newSessionFactory(config.SessionConfig{Driver: config.DriverMock}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, err := f.Open(context.Background(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sess.Close()
	if sess.Info().Driver != "mock" {
		t.Errorf("expected mock session, got %s", sess.Info().Driver)
	}
}

func TestBuildRunConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scenarios", "a.yaml"), demoYAML)
	cfgPath := writeFile(t, filepath.Join(dir, "config.yaml"), `
scenarios: [scenarios/*.yaml]
includeTags: [smoke]
env:
  BASE: from-config
  KEEP: yes
timeout: 1500
parallel: 3
driver: mock
browser: Firefox
capabilities:
  acceptInsecureCerts: true
`)

	var got *RunConfig
	app := &cli.App{
		Flags: GlobalFlags,
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runCommand.Flags,
			Action: func(c *cli.Context) error {
				var err error
				got, err = buildRunConfig(c)
				return err
			},
		}},
	}
	err := app.Run([]string{"checkbox-runner", "run",
		"--config", cfgPath,
		"-e", "BASE=from-flag",
		"--parallel", "2",
		"--output", filepath.Join(dir, "out"), "--flatten",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.ScenarioPaths) != 1 || filepath.Base(got.ScenarioPaths[0]) != "a.yaml" {
		t.Errorf("scenario paths from config globs: %v", got.ScenarioPaths)
	}
	if got.Env["BASE"] != "from-flag" || got.Env["KEEP"] != "yes" {
		t.Errorf("env merge: %v", got.Env)
	}
	if got.Parallel != 2 {
		t.Errorf("flag should override parallel, got %d", got.Parallel)
	}
	if got.Timeout != 1500*time.Millisecond {
		t.Errorf("timeout from config, got %v", got.Timeout)
	}
	if len(got.IncludeTags) != 1 || got.IncludeTags[0] != "smoke" {
		t.Errorf("include tags from config: %v", got.IncludeTags)
	}
	if got.Session.Driver != config.DriverMock || got.Session.Browser != "Firefox" {
		t.Errorf("session from config: %+v", got.Session)
	}
	if got.Session.Capabilities["acceptInsecureCerts"] != true {
		t.Errorf("capabilities from config: %v", got.Session.Capabilities)
	}
	if got.OutputDir != filepath.Join(dir, "out") {
		t.Errorf("output dir: %s", got.OutputDir)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, filepath.Join(dir, "good.yaml"), demoYAML)
	bad := writeFile(t, filepath.Join(dir, "bad", "bad.yaml"), "name: x\ntarget:\n  xpath: //div[\n")

	var out bytes.Buffer
	if err := testApp(&out).Run([]string{"checkbox-runner", "--no-color", "validate", good}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "valid: 3 scenario(s) in 1 file(s)") {
		t.Errorf("unexpected output: %s", out.String())
	}

	out.Reset()
	err := testApp(&out).Run([]string{"checkbox-runner", "--no-color", "validate", bad})
	if exitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(out.String(), "url is required") || !strings.Contains(out.String(), "invalid xpath") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func runMock(t *testing.T, yaml string, extra ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "checkboxes.yaml"), yaml)
	outDir := filepath.Join(dir, "out")

	args := []string{"checkbox-runner", "--driver", "mock", "--no-color",
		"--log-file", filepath.Join(dir, "run.log"),
		"run", "--output", outDir, "--flatten",
		"--timeout", "2s", "--poll-interval", "10ms"}
	args = append(args, extra...)
	args = append(args, file)

	var out bytes.Buffer
	err := testApp(&out).Run(args)
	return out.String(), outDir, err
}

func TestRunCommand_MockDriver(t *testing.T) {
	out, outDir, err := runMock(t, demoYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3 scenarios: 3 passed") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "[1/3] single checkbox") {
		t.Errorf("missing progress line:\n%s", out)
	}

	idx, err := report.ReadIndex(filepath.Join(outDir, report.IndexFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if idx.Status != report.StatusPassed || idx.Runner.Driver != "mock" {
		t.Errorf("unexpected report: status=%s driver=%s", idx.Status, idx.Runner.Driver)
	}
}

func TestRunCommand_TagFilter(t *testing.T) {
	out, _, err := runMock(t, demoYAML, "--include-tags", "tree")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 scenarios: 1 passed") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestRunCommand_AssertionFailureExitsNonZero(t *testing.T) {
	failing := strings.Replace(demoYAML, "expect:\n  selected: true", "expect:\n  selected: false", 1)
	out, _, err := runMock(t, failing)
	if exitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 failed") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestRunCommand_NoMatchingScenarios(t *testing.T) {
	_, _, err := runMock(t, demoYAML, "--include-tags", "nothing")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
}
