package cli

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/checkbox-runner/pkg/config"
	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/driver/cdp"
	"github.com/devicelab-dev/checkbox-runner/pkg/driver/mock"
	"github.com/devicelab-dev/checkbox-runner/pkg/driver/playwright"
	"github.com/devicelab-dev/checkbox-runner/pkg/driver/webdriver"
	"github.com/devicelab-dev/checkbox-runner/pkg/executor"
	"github.com/devicelab-dev/checkbox-runner/pkg/scenario"
)

// Window size used by local and attached browsers. Remote hubs maximize.
const (
	windowWidth  = 1920
	windowHeight = 1080
)

// commandTimeout bounds one WebDriver round trip.
const commandTimeout = 60 * time.Second

// newSessionFactory returns a factory opening one session per scenario on
// the configured backend.
func newSessionFactory(sc config.SessionConfig, install bool, log *zap.Logger) (executor.SessionFactory, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	switch sc.Driver {
	case config.DriverWebDriver:
		return executor.SessionFactoryFunc(func(ctx context.Context, s *scenario.Scenario) (core.Session, error) {
			return webdriver.Open(ctx, webdriver.Config{
				HubURL:         sc.HubURL,
				Username:       sc.Username,
				AccessKey:      sc.AccessKey,
				Capabilities:   sc.W3CCapabilities(s.Describe()),
				MaximizeWindow: true,
				HTTPTimeout:    commandTimeout,
				Logger:         log,
			})
		}), nil

	case config.DriverCDP:
		return executor.SessionFactoryFunc(func(ctx context.Context, s *scenario.Scenario) (core.Session, error) {
			return cdp.Open(ctx, cdp.Config{
				RemoteURL: sc.CDPURL,
				Headless:  sc.Headless,
				Width:     windowWidth,
				Height:    windowHeight,
				Logger:    log,
			})
		}), nil

	case config.DriverPlaywright:
		return executor.SessionFactoryFunc(func(ctx context.Context, s *scenario.Scenario) (core.Session, error) {
			return playwright.Open(ctx, playwright.Config{
				Browser:    playwrightBrowser(sc.Browser),
				Headless:   sc.Headless,
				WSEndpoint: sc.PlaywrightWS,
				CDPURL:     sc.CDPURL,
				Install:    install,
				Width:      windowWidth,
				Height:     windowHeight,
				Logger:     log,
			})
		}), nil

	default: // config.DriverMock; Validate rejected anything else
		return executor.SessionFactoryFunc(func(ctx context.Context, s *scenario.Scenario) (core.Session, error) {
			return mock.New(mock.Config{Pages: mock.DemoPages()}), nil
		}), nil
	}
}

// playwrightBrowser maps WebDriver browser names onto Playwright engines.
func playwrightBrowser(name string) string {
	switch strings.ToLower(name) {
	case "firefox":
		return "firefox"
	case "safari", "webkit":
		return "webkit"
	default:
		return "chromium"
	}
}
