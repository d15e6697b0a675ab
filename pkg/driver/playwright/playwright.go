// Package playwright implements core.Session with playwright-go, launching a
// browser through the Playwright driver or connecting to a running one.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// DefaultActionTimeout bounds a single element command when the caller's
// context has no deadline.
const DefaultActionTimeout = 5 * time.Second

// Config selects the browser and how to reach it.
type Config struct {
	// Browser is chromium, firefox or webkit.
	Browser  string
	Headless bool
	// WSEndpoint connects to a Playwright server; CDPURL attaches to a
	// Chromium debugging endpoint. Both empty launches a browser.
	WSEndpoint string
	CDPURL     string
	// Install downloads the driver and browser before starting.
	Install bool
	Width   int
	Height  int
	Logger  *zap.Logger
}

// Session is a Playwright page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	info    core.SessionInfo
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open starts Playwright and opens a page.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Browser
	if name == "" {
		name = "chromium"
	}

	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{name}}); err != nil {
			return nil, core.ErrSessionFailed.WithMessage("failed to install playwright").WithCause(err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, core.ErrSessionFailed.WithMessage("failed to start playwright").WithCause(err)
	}
	s := &Session{pw: pw, logger: logger}

	bt, err := browserType(pw, name)
	if err != nil {
		_ = pw.Stop()
		return nil, core.ErrInvalidConfig.WithMessage(err.Error())
	}

	endpoint := "local"
	switch {
	case cfg.WSEndpoint != "":
		endpoint = cfg.WSEndpoint
		s.browser, err = bt.Connect(cfg.WSEndpoint)
	case cfg.CDPURL != "":
		endpoint = cfg.CDPURL
		s.browser, err = bt.ConnectOverCDP(cfg.CDPURL)
	default:
		s.browser, err = bt.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Headless),
			Args:     []string{"--disable-dev-shm-usage"},
		})
	}
	if err != nil {
		_ = pw.Stop()
		return nil, core.ErrSessionFailed.WithMessagef("failed to start %s (%s)", name, endpoint).WithCause(err)
	}

	opts := playwright.BrowserNewContextOptions{}
	if cfg.Width > 0 && cfg.Height > 0 {
		opts.Viewport = &playwright.Size{Width: cfg.Width, Height: cfg.Height}
	}
	if s.bctx, err = s.browser.NewContext(opts); err == nil {
		s.page, err = s.bctx.NewPage()
	}
	if err != nil {
		_ = s.Close()
		return nil, core.ErrSessionFailed.WithMessage("failed to open page").WithCause(err)
	}

	s.info = core.SessionInfo{
		Driver:         "playwright",
		Browser:        name,
		BrowserVersion: s.browser.Version(),
		Endpoint:       endpoint,
	}
	logger.Info("playwright session started",
		zap.String("browser", name),
		zap.String("version", s.info.BrowserVersion),
		zap.String("endpoint", endpoint))
	return s, nil
}

func browserType(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch strings.ToLower(name) {
	case "chromium", "chrome":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit", "safari":
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unknown playwright browser %q", name)
	}
}

// selectorFor converts a locator to a Playwright selector engine string.
func selectorFor(by core.By) (string, error) {
	using, value, err := by.W3C()
	if err != nil {
		return "", err
	}
	if using == "xpath" {
		return "xpath=" + value, nil
	}
	return "css=" + value, nil
}

// timeoutMS converts the time left on ctx to Playwright's millisecond timeout.
func timeoutMS(ctx context.Context) *float64 {
	d := DefaultActionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// classify maps Playwright errors onto the error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "is not a valid selector"),
		strings.Contains(msg, "Unexpected token"),
		strings.Contains(msg, "not a valid XPath"):
		return core.ErrInvalidLocator.WithMessagef("%s rejected", op).WithCause(err)
	case errors.Is(err, playwright.ErrTargetClosed):
		return core.ErrSessionFailed.WithMessagef("%s: browser closed", op).WithCause(err)
	default:
		return core.CommandError(op, err)
	}
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(navTimeout(ctx).Milliseconds())),
	})
	if err != nil {
		return core.ErrNavigationFailed.WithMessagef("navigate to %s", url).WithCause(err)
	}
	return nil
}

func navTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 60 * time.Second
}

// Locate returns matching elements in document order. Each element's ID is
// a ref stored on the page, so the same node yields the same ID across calls.
func (s *Session) Locate(ctx context.Context, by core.By) ([]core.ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := selectorFor(by)
	if err != nil {
		return nil, core.ErrInvalidLocator.WithMessage(by.String()).WithCause(err)
	}
	found, err := s.page.QuerySelectorAll(sel)
	if err != nil {
		return nil, classify("locate", err)
	}
	handles := make([]core.ElementHandle, len(found))
	for i, h := range found {
		v, err := h.Evaluate(refExpr)
		if err != nil {
			return nil, classify("locate", err)
		}
		ref, ok := v.(string)
		if !ok {
			return nil, core.CommandError("locate", fmt.Errorf("unexpected element ref %v", v))
		}
		handles[i] = &element{h: h, id: ref}
	}
	return handles, nil
}

// Close tears down the page, browser and driver.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.bctx != nil {
			errs = append(errs, s.bctx.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		errs = append(errs, s.pw.Stop())
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("playwright session closed", zap.Error(s.closeErr))
	})
	return s.closeErr
}

// Info describes the browser.
func (s *Session) Info() core.SessionInfo {
	return s.info
}

var _ core.Session = (*Session)(nil)

// refExpr returns the element's slot in a page-side array, adding it on first
// sight. The array is reset by navigation.
const refExpr = `el => {
	const refs = window.__checkboxRefs = window.__checkboxRefs || [];
	let i = refs.indexOf(el);
	if (i < 0) {
		refs.push(el);
		i = refs.length - 1;
	}
	return String(i);
}`

type element struct {
	h  playwright.ElementHandle
	id string
}

func (e *element) ID() string { return e.id }

func (e *element) eval(ctx context.Context, op, expr string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := e.h.Evaluate(expr)
	if err != nil {
		return nil, classify(op, err)
	}
	return v, nil
}

func (e *element) TagName(ctx context.Context) (string, error) {
	v, err := e.eval(ctx, "tag name", "el => el.tagName.toLowerCase()")
	s, _ := v.(string)
	return s, err
}

func (e *element) Rect(ctx context.Context) (core.Bounds, error) {
	if err := ctx.Err(); err != nil {
		return core.Bounds{}, err
	}
	box, err := e.h.BoundingBox()
	if err != nil {
		return core.Bounds{}, classify("rect", err)
	}
	// nil box means not rendered.
	if box == nil {
		return core.Bounds{}, nil
	}
	return core.Bounds{X: int(box.X), Y: int(box.Y), Width: int(box.Width), Height: int(box.Height)}, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.h.IsVisible()
	return v, classify("isDisplayed", err)
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.h.IsEnabled()
	return v, classify("isEnabled", err)
}

const selectedExpr = `el => {
	const tag = el.tagName.toLowerCase();
	if (tag === "input" && (el.type === "checkbox" || el.type === "radio")) return el.checked;
	if (tag === "option") return el.selected;
	return false;
}`

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	v, err := e.eval(ctx, "isSelected", selectedExpr)
	b, _ := v.(bool)
	return b, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	visible, err := e.IsDisplayed(ctx)
	if err != nil || !visible {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.h.InnerText()
	if err != nil {
		return "", classify("text", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("click", e.h.Click(playwright.ElementHandleClickOptions{Timeout: timeoutMS(ctx)}))
}
