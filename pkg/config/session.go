package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Driver names.
const (
	DriverWebDriver  = "webdriver"
	DriverCDP        = "cdp"
	DriverPlaywright = "playwright"
	DriverMock       = "mock"
)

// DefaultHubURL is the LambdaTest Selenium hub.
const DefaultHubURL = "https://hub.lambdatest.com/wd/hub"

// Environment variables read by FromEnv.
const (
	EnvUsername       = "LT_USERNAME"
	EnvAccessKey      = "LT_ACCESSKEY"
	EnvHubURL         = "CHECKBOX_HUB_URL"
	EnvDriver         = "CHECKBOX_DRIVER"
	EnvBrowser        = "CHECKBOX_BROWSER"
	EnvBrowserVersion = "CHECKBOX_BROWSER_VERSION"
	EnvPlatform       = "CHECKBOX_PLATFORM"
	EnvBuild          = "CHECKBOX_BUILD"
	EnvCDPURL         = "CHECKBOX_CDP_URL"
	EnvPlaywrightWS   = "CHECKBOX_PLAYWRIGHT_WS"
	EnvHeadless       = "CHECKBOX_HEADLESS"
)

// SessionConfig is everything needed to open a browser session.
type SessionConfig struct {
	Driver         string
	HubURL         string
	Username       string
	AccessKey      string
	Browser        string
	BrowserVersion string
	Platform       string
	Build          string
	CDPURL         string
	PlaywrightWS   string
	Headless       bool
	// Capabilities are merged over the generated ones.
	Capabilities map[string]interface{}
}

// LoadDotEnv loads dir/.env into the process environment. Variables already
// set are kept. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return core.ErrInvalidConfig.WithMessagef("failed to read %s", path).WithCause(err)
	}
	return nil
}

// FromEnv builds a SessionConfig from lookup (os.Getenv when nil), applying
// defaults for anything unset.
func FromEnv(lookup func(string) string) SessionConfig {
	if lookup == nil {
		lookup = os.Getenv
	}
	get := func(key, def string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return def
	}
	headless, err := strconv.ParseBool(get(EnvHeadless, "true"))
	if err != nil {
		headless = true
	}
	return SessionConfig{
		Driver:         get(EnvDriver, DriverWebDriver),
		HubURL:         get(EnvHubURL, DefaultHubURL),
		Username:       get(EnvUsername, ""),
		AccessKey:      get(EnvAccessKey, ""),
		Browser:        get(EnvBrowser, "Chrome"),
		BrowserVersion: get(EnvBrowserVersion, "latest"),
		Platform:       get(EnvPlatform, "Windows 10"),
		Build:          get(EnvBuild, "Selenium 4"),
		CDPURL:         get(EnvCDPURL, ""),
		PlaywrightWS:   get(EnvPlaywrightWS, ""),
		Headless:       headless,
	}
}

// IsLambdaTest reports whether the hub is a LambdaTest endpoint.
func (c SessionConfig) IsLambdaTest() bool {
	u, err := url.Parse(c.HubURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "lambdatest.com")
}

// Validate checks the fields the selected driver needs.
func (c SessionConfig) Validate() error {
	switch c.Driver {
	case DriverWebDriver:
		if c.HubURL == "" {
			return core.ErrMissingRequired.WithMessagef("%s is required for the webdriver driver", EnvHubURL)
		}
		if c.IsLambdaTest() && !hasCredentials(c) {
			return core.ErrMissingRequired.WithMessagef("%s and %s are required for %s", EnvUsername, EnvAccessKey, c.HubURL)
		}
	case DriverCDP, DriverPlaywright, DriverMock:
	default:
		return core.ErrInvalidConfig.WithMessagef("unknown driver %q", c.Driver)
	}
	return nil
}

func hasCredentials(c SessionConfig) bool {
	if c.Username != "" && c.AccessKey != "" {
		return true
	}
	u, err := url.Parse(c.HubURL)
	return err == nil && u.User != nil && u.User.Username() != ""
}

// W3CCapabilities returns the alwaysMatch capabilities for a session named
// name. LambdaTest hubs get vendor options under LT:Options.
func (c SessionConfig) W3CCapabilities(name string) map[string]interface{} {
	caps := map[string]interface{}{
		"browserName": c.Browser,
	}
	if c.IsLambdaTest() {
		caps["browserVersion"] = c.BrowserVersion
		caps["LT:Options"] = map[string]interface{}{
			"user":             c.Username,
			"accessKey":        c.AccessKey,
			"build":            c.Build,
			"name":             name,
			"platformName":     c.Platform,
			"seCdp":            true,
			"selenium_version": "4.0.0",
		}
	} else {
		// Selenium Grid matches lower-case browser names.
		caps["browserName"] = strings.ToLower(c.Browser)
		if c.BrowserVersion != "" && c.BrowserVersion != "latest" {
			caps["browserVersion"] = c.BrowserVersion
		}
	}
	for k, v := range c.Capabilities {
		caps[k] = v
	}
	return caps
}
