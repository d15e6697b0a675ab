package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

func lookupFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv(lookupFrom(nil))

	assert.Equal(t, DriverWebDriver, cfg.Driver)
	assert.Equal(t, DefaultHubURL, cfg.HubURL)
	assert.Equal(t, "Chrome", cfg.Browser)
	assert.Equal(t, "latest", cfg.BrowserVersion)
	assert.Equal(t, "Windows 10", cfg.Platform)
	assert.Equal(t, "Selenium 4", cfg.Build)
	assert.True(t, cfg.Headless)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg := FromEnv(lookupFrom(map[string]string{
		EnvUsername:  "alice",
		EnvAccessKey: "k3y",
		EnvHubURL:    "http://grid:4444/wd/hub",
		EnvDriver:    "cdp",
		EnvBrowser:   " Firefox ",
		EnvHeadless:  "false",
		EnvCDPURL:    "ws://127.0.0.1:9222",
	}))

	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "k3y", cfg.AccessKey)
	assert.Equal(t, "http://grid:4444/wd/hub", cfg.HubURL)
	assert.Equal(t, DriverCDP, cfg.Driver)
	assert.Equal(t, "Firefox", cfg.Browser)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.CDPURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SessionConfig
		wantErr *core.ExecutionError
	}{
		{"lambdatest with credentials", SessionConfig{Driver: DriverWebDriver, HubURL: DefaultHubURL, Username: "u", AccessKey: "k"}, nil},
		{"lambdatest credentials in url", SessionConfig{Driver: DriverWebDriver, HubURL: "https://u:k@hub.lambdatest.com/wd/hub"}, nil},
		{"lambdatest without credentials", SessionConfig{Driver: DriverWebDriver, HubURL: DefaultHubURL}, core.ErrMissingRequired},
		{"grid without credentials", SessionConfig{Driver: DriverWebDriver, HubURL: "http://localhost:4444"}, nil},
		{"webdriver without hub", SessionConfig{Driver: DriverWebDriver}, core.ErrMissingRequired},
		{"mock", SessionConfig{Driver: DriverMock}, nil},
		{"unknown driver", SessionConfig{Driver: "selenium-rc"}, core.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestW3CCapabilities_LambdaTest(t *testing.T) {
	cfg := FromEnv(lookupFrom(map[string]string{EnvUsername: "alice", EnvAccessKey: "k3y"}))
	cfg.Capabilities = map[string]interface{}{"acceptInsecureCerts": true}

	caps := cfg.W3CCapabilities("checkbox demo")
	assert.Equal(t, "Chrome", caps["browserName"])
	assert.Equal(t, "latest", caps["browserVersion"])
	assert.Equal(t, true, caps["acceptInsecureCerts"])

	lt, ok := caps["LT:Options"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", lt["user"])
	assert.Equal(t, "k3y", lt["accessKey"])
	assert.Equal(t, "checkbox demo", lt["name"])
	assert.Equal(t, "Windows 10", lt["platformName"])
	assert.Equal(t, true, lt["seCdp"])
	assert.Equal(t, "4.0.0", lt["selenium_version"])
}

func TestW3CCapabilities_Grid(t *testing.T) {
	cfg := SessionConfig{HubURL: "http://localhost:4444", Browser: "Chrome", BrowserVersion: "latest"}
	caps := cfg.W3CCapabilities("x")
	assert.Equal(t, map[string]interface{}{"browserName": "chrome"}, caps)

	cfg.BrowserVersion = "126"
	assert.Equal(t, "126", cfg.W3CCapabilities("x")["browserVersion"])
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHECKBOX_DOTENV_A=from-file\nCHECKBOX_DOTENV_B=from-file\n"), 0644))
	t.Setenv("CHECKBOX_DOTENV_B", "from-process")
	t.Cleanup(func() { os.Unsetenv("CHECKBOX_DOTENV_A") })

	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-file", os.Getenv("CHECKBOX_DOTENV_A"))
	assert.Equal(t, "from-process", os.Getenv("CHECKBOX_DOTENV_B"), "existing variables win")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(t.TempDir()))
}
