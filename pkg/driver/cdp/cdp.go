// Package cdp implements core.Session over the Chrome DevTools Protocol,
// either launching a local Chrome or attaching to a remote debugging URL.
package cdp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Config selects and tunes the browser.
type Config struct {
	// RemoteURL attaches to an existing browser (ws:// or http:// debugging
	// endpoint). Empty launches a local Chrome.
	RemoteURL string
	ExecPath  string
	Headless  bool
	Width     int
	Height    int
	Args      []string
	Logger    *zap.Logger
}

// Session is a CDP-backed browser tab.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	info        core.SessionInfo
	logger      *zap.Logger

	closeOnce sync.Once
}

// Open starts or attaches to a browser and opens a tab.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	endpoint := cfg.RemoteURL
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
		endpoint = "local"
	}

	sugar := logger.Sugar()
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf))

	s := &Session{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
		info:        core.SessionInfo{Driver: "cdp", Browser: "chrome", Endpoint: endpoint},
	}

	// First Run starts the browser.
	err := s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		_, product, _, _, _, err := browser.GetVersion().Do(c)
		if err != nil {
			return err
		}
		s.info.Browser, s.info.BrowserVersion = splitProduct(product)
		if cfg.RemoteURL != "" && cfg.Width > 0 && cfg.Height > 0 {
			return emulation.SetDeviceMetricsOverride(int64(cfg.Width), int64(cfg.Height), 1, false).Do(c)
		}
		return nil
	}))
	if err != nil {
		s.shutdown()
		return nil, core.ErrSessionFailed.WithMessagef("could not start browser (%s)", endpoint).WithCause(err)
	}
	if t := chromedp.FromContext(tabCtx).Target; t != nil {
		s.info.SessionID = string(t.TargetID)
	}

	logger.Info("cdp session started",
		zap.String("endpoint", endpoint),
		zap.String("browser", s.info.Browser),
		zap.String("version", s.info.BrowserVersion))
	return s, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Width, cfg.Height))
	}
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(k, v))
			continue
		}
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// splitProduct turns "HeadlessChrome/126.0.6478.126" into ("chrome", "126.0.6478.126").
func splitProduct(product string) (string, string) {
	name, version, _ := strings.Cut(product, "/")
	name = strings.ToLower(strings.TrimPrefix(name, "Headless"))
	if name == "" {
		name = "chrome"
	}
	return name, version
}

// run executes actions on the tab, bounded by the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return core.ErrNavigationFailed.WithMessagef("navigate to %s", url).WithCause(err)
	}
	return nil
}

// Locate returns matching elements in document order.
func (s *Session) Locate(ctx context.Context, by core.By) ([]core.ElementHandle, error) {
	script, err := locateScript(by)
	if err != nil {
		return nil, core.ErrInvalidLocator.WithMessage(by.String()).WithCause(err)
	}
	var refs []string
	if err := s.run(ctx, chromedp.Evaluate(script, &refs)); err != nil {
		return nil, locateError(by, err)
	}
	handles := make([]core.ElementHandle, len(refs))
	for i, ref := range refs {
		handles[i] = &element{s: s, ref: ref}
	}
	return handles, nil
}

// locateError maps a script exception (bad XPath or CSS) to ErrInvalidLocator.
func locateError(by core.By, err error) error {
	var exc *runtime.ExceptionDetails
	if errors.As(err, &exc) {
		return core.ErrInvalidLocator.WithMessage(by.String()).WithCause(err)
	}
	return core.CommandError("locate", err)
}

// Close closes the tab and the browser it launched.
func (s *Session) Close() error {
	s.closeOnce.Do(s.shutdown)
	return nil
}

func (s *Session) shutdown() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := chromedp.Cancel(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("cdp cancel", zap.Error(err))
	}
	s.cancel()
	s.allocCancel()
}

// Info describes the browser.
func (s *Session) Info() core.SessionInfo {
	return s.info
}

var _ core.Session = (*Session)(nil)

type element struct {
	s   *Session
	ref string
}

func (e *element) ID() string { return e.ref }

func (e *element) describe(ctx context.Context) (elementState, error) {
	var st elementState
	if err := e.s.run(ctx, chromedp.Evaluate(describeScript(e.ref), &st)); err != nil {
		return st, core.CommandError("describe element", err)
	}
	return st, nil
}

func (e *element) TagName(ctx context.Context) (string, error) {
	st, err := e.describe(ctx)
	return st.Tag, err
}

func (e *element) Rect(ctx context.Context) (core.Bounds, error) {
	st, err := e.describe(ctx)
	if err != nil {
		return core.Bounds{}, err
	}
	return core.Bounds{X: st.X, Y: st.Y, Width: st.Width, Height: st.Height}, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	st, err := e.describe(ctx)
	return st.Displayed, err
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	st, err := e.describe(ctx)
	return st.Enabled, err
}

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	st, err := e.describe(ctx)
	return st.Selected, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	st, err := e.describe(ctx)
	return st.Text, err
}

// Click dispatches a real mouse click at the element's centre.
func (e *element) Click(ctx context.Context) error {
	var pt clickPoint
	if err := e.s.run(ctx, chromedp.Evaluate(clickPointScript(e.ref), &pt)); err != nil {
		return core.CommandError("click", err)
	}
	if !pt.Visible {
		return core.ErrCommandFailed.WithMessage("element not interactable")
	}
	if err := e.s.run(ctx, chromedp.MouseClickXY(pt.X, pt.Y)); err != nil {
		return core.CommandError("click", err)
	}
	return nil
}
