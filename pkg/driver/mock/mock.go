// Package mock provides a browser session over static HTML fixtures for
// testing without a real browser.
//
// Fixtures carry layout and behaviour hints as attributes:
//
//	data-rect="x,y,w,h"        bounding box in CSS pixels
//	hidden, style=display:none  element (and descendants) not displayed
//	disabled                    element not enabled
//	checked                     checkbox/radio selected
//	data-toggle="id"            click toggles the hidden attribute of #id
//	data-status-target="id"     click writes data-status-checked/unchecked into #id
//	data-status-delay="ms"      ... after ms milliseconds
//	data-show-after="ms"        hidden element becomes displayed ms after navigation
package mock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"golang.org/x/net/html"
)

// Config configures mock session behavior.
type Config struct {
	// Pages maps URL to HTML source.
	Pages map[string]string
	// ClickDelay adds artificial delay per click
	ClickDelay time.Duration
	// Browser name to report
	Browser string
}

// Session is a mock implementation of core.Session.
type Session struct {
	cfg Config

	mu     sync.Mutex
	doc    *html.Node
	url    string
	ids    map[*html.Node]string
	timers []*time.Timer
	clicks int
	closed bool
}

// New creates a new mock session.
func New(cfg Config) *Session {
	if cfg.Browser == "" {
		cfg.Browser = "mock"
	}
	return &Session{cfg: cfg, ids: make(map[*html.Node]string)}
}

// Navigate parses the fixture registered for url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	src, ok := s.cfg.Pages[url]
	if !ok {
		return core.ErrNavigationFailed.WithMessagef("no fixture for %s", url)
	}
	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return core.ErrNavigationFailed.WithMessagef("parse fixture for %s", url).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.stopTimersLocked()
	s.doc = doc
	s.url = url
	s.ids = make(map[*html.Node]string)

	for _, n := range htmlquery.Find(doc, "//*[@data-show-after]") {
		ms, err := strconv.Atoi(attr(n, "data-show-after"))
		if err != nil {
			continue
		}
		node := n
		s.afterLocked(time.Duration(ms)*time.Millisecond, func() {
			removeAttr(node, "hidden")
		})
	}
	return nil
}

// Locate returns matching elements in document order.
func (s *Session) Locate(ctx context.Context, by core.By) ([]core.ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if s.doc == nil {
		return nil, core.ErrNavigationFailed.WithMessage("no page loaded")
	}

	var nodes []*html.Node
	switch by.Kind {
	case core.ByXPath, core.ByTextContains:
		expr, err := by.AsXPath()
		if err != nil {
			return nil, core.ErrInvalidLocator.WithMessage(by.String()).WithCause(err)
		}
		nodes, err = htmlquery.QueryAll(s.doc, expr)
		if err != nil {
			return nil, core.ErrInvalidLocator.WithMessage(by.String()).WithCause(err)
		}
	default:
		css, err := by.AsCSS()
		if err != nil {
			return nil, core.ErrInvalidLocator.WithMessage(by.String()).WithCause(err)
		}
		nodes = goquery.NewDocumentFromNode(s.doc).Find(css).Nodes
	}

	handles := make([]core.ElementHandle, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		handles = append(handles, &element{s: s, n: n, id: s.idLocked(n)})
	}
	return handles, nil
}

// Close stops pending timers. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	s.closed = true
	return nil
}

// Info describes the mock backend.
func (s *Session) Info() core.SessionInfo {
	return core.SessionInfo{
		Driver:    "mock",
		Browser:   s.cfg.Browser,
		Platform:  "mock",
		SessionID: fmt.Sprintf("mock-%p", s),
	}
}

// Clicks returns the number of clicks dispatched so far.
func (s *Session) Clicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks
}

// URL returns the currently loaded page.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Session) idLocked(n *html.Node) string {
	if id, ok := s.ids[n]; ok {
		return id
	}
	id := fmt.Sprintf("mock-%d", len(s.ids)+1)
	s.ids[n] = id
	return id
}

func (s *Session) afterLocked(d time.Duration, fn func()) {
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.closed {
			fn()
		}
	})
	s.timers = append(s.timers, t)
}

func (s *Session) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

var errClosed = core.ErrSessionFailed.WithMessage("mock session closed")

var _ core.Session = (*Session)(nil)
