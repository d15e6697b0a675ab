package config

import (
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides the checkbox-runner home directory.
const EnvHome = "CHECKBOX_RUNNER_HOME"

var home struct {
	once sync.Once
	dir  string
}

// GetHome returns the checkbox-runner home directory, resolved once:
// $CHECKBOX_RUNNER_HOME, then <home> when the binary lives in <home>/bin,
// then the working directory.
func GetHome() string {
	home.once.Do(func() {
		home.dir = resolveHome(os.Getenv(EnvHome), os.Executable, os.Getwd)
	})
	return home.dir
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string { return filepath.Join(GetHome(), "logs") }

// GetReportsDir returns <home>/reports.
func GetReportsDir() string { return filepath.Join(GetHome(), "reports") }

func resolveHome(env string, executable, getwd func() (string, error)) string {
	if env != "" {
		return env
	}
	if exe, err := executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if bin := filepath.Dir(exe); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	if cwd, err := getwd(); err == nil {
		return cwd
	}
	return "."
}

// ResetHome forgets the resolved home directory. Tests only.
func ResetHome() {
	home.once = sync.Once{}
	home.dir = ""
}
