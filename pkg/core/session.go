// Package core provides the execution model types for checkbox-runner.
package core

import (
	"context"
	"fmt"
)

// Session is a live browser session owned by exactly one scenario.
// Implementations: WebDriver hub, Chrome DevTools, Playwright, static HTML mock.
// The verifier handles resolution and assertions; Session just runs commands.
type Session interface {
	// Navigate loads url and returns once the browser reports the navigation done.
	Navigate(ctx context.Context, url string) error

	// Locate returns every element matching by, in DOM order.
	// Zero matches is not an error at this level; callers decide.
	Locate(ctx context.Context, by By) ([]ElementHandle, error)

	// Close releases the session. Safe to call more than once.
	Close() error

	// Info describes the backend for reports.
	Info() SessionInfo
}

// ElementHandle is an opaque reference to a located DOM node.
type ElementHandle interface {
	// ID identifies the underlying node. Two handles with the same ID refer to
	// the same node within one session.
	ID() string

	TagName(ctx context.Context) (string, error)
	Rect(ctx context.Context) (Bounds, error)
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	IsSelected(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
}

// SessionInfo contains browser/backend details
type SessionInfo struct {
	Driver         string `json:"driver"`                   // webdriver, cdp, playwright, mock
	Browser        string `json:"browser,omitempty"`        // e.g., "chrome"
	BrowserVersion string `json:"browserVersion,omitempty"` // e.g., "latest", "126.0"
	Platform       string `json:"platform,omitempty"`       // e.g., "Windows 10"
	SessionID      string `json:"sessionId,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"` // hub or CDP URL, credentials stripped
}

// Bounds represents element position and size in CSS pixels
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (b Bounds) Right() int { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b Bounds) Bottom() int { return b.Y + b.Height }

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// IsEmpty reports whether the element occupies no area (not rendered).
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.Right(), b.Bottom())
}

// CheckboxState is the observable state read after every interaction.
type CheckboxState struct {
	Displayed bool `json:"displayed"`
	Enabled   bool `json:"enabled"`
	Selected  bool `json:"selected"`
}

// Readable reports whether Selected may be asserted on. Reads taken on a
// hidden or disabled element are undefined.
func (s CheckboxState) Readable() bool {
	return s.Displayed && s.Enabled
}

func (s CheckboxState) String() string {
	return fmt.Sprintf("displayed=%t enabled=%t selected=%t", s.Displayed, s.Enabled, s.Selected)
}

// ReadState reads displayed/enabled first and only asks for the selected
// state once the element is known to be readable.
func ReadState(ctx context.Context, h ElementHandle) (CheckboxState, error) {
	var st CheckboxState
	var err error

	if st.Displayed, err = h.IsDisplayed(ctx); err != nil {
		return st, err
	}
	if st.Enabled, err = h.IsEnabled(ctx); err != nil {
		return st, err
	}
	if !st.Readable() {
		return st, nil
	}
	st.Selected, err = h.IsSelected(ctx)
	return st, err
}
