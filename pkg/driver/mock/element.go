package mock

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"golang.org/x/net/html"
)

type element struct {
	s  *Session
	n  *html.Node
	id string
}

func (e *element) ID() string { return e.id }

func (e *element) TagName(ctx context.Context) (string, error) {
	return e.n.Data, e.check(ctx)
}

func (e *element) Rect(ctx context.Context) (core.Bounds, error) {
	if err := e.check(ctx); err != nil {
		return core.Bounds{}, err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if !displayed(e.n) {
		return core.Bounds{}, nil
	}
	return parseRect(attr(e.n, "data-rect")), nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return displayed(e.n), nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return enabled(e.n), nil
}

// IsSelected follows WebDriver: only checkable inputs and options report
// selection, anything else is never selected.
func (e *element) IsSelected(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	switch {
	case isCheckable(e.n):
		return hasAttr(e.n, "checked"), nil
	case e.n.Data == "option":
		return hasAttr(e.n, "selected"), nil
	default:
		return false, nil
	}
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if !displayed(e.n) {
		return "", nil
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(e.n)), " "), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	if d := e.s.cfg.ClickDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if !displayed(e.n) {
		return core.ErrCommandFailed.WithMessage("element not interactable")
	}
	e.s.clicks++
	if !enabled(e.n) {
		return nil
	}

	if target := attr(e.n, "data-toggle"); target != "" {
		if n := byID(e.s.doc, target); n != nil {
			if hasAttr(n, "hidden") {
				removeAttr(n, "hidden")
			} else {
				setAttr(n, "hidden", "")
			}
		}
	}

	box := checkboxFor(e.s.doc, e.n)
	if box == nil || !enabled(box) {
		return nil
	}
	checked := !hasAttr(box, "checked")
	if checked {
		setAttr(box, "checked", "")
	} else {
		removeAttr(box, "checked")
	}
	e.s.statusLocked(box, checked)
	return nil
}

func (e *element) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.s.closed {
		return errClosed
	}
	return nil
}

func (s *Session) statusLocked(box *html.Node, checked bool) {
	target := byID(s.doc, attr(box, "data-status-target"))
	if target == nil {
		return
	}
	text := attr(box, "data-status-unchecked")
	if checked {
		text = attr(box, "data-status-checked")
	}
	apply := func() { setText(target, text) }

	ms, _ := strconv.Atoi(attr(box, "data-status-delay"))
	if ms <= 0 {
		apply()
		return
	}
	s.afterLocked(time.Duration(ms)*time.Millisecond, apply)
}

// checkboxFor returns the checkbox a click on n toggles: n itself, the
// control of a label, or the first checkbox nested inside a wrapper.
func checkboxFor(doc, n *html.Node) *html.Node {
	if isCheckable(n) {
		return n
	}
	if n.Data == "label" {
		if id := attr(n, "for"); id != "" {
			if c := byID(doc, id); c != nil && isCheckable(c) {
				return c
			}
		}
	}
	return htmlquery.FindOne(n, `.//input[@type='checkbox' or @type='radio']`)
}

func isCheckable(n *html.Node) bool {
	if n.Data != "input" {
		return false
	}
	t := strings.ToLower(attr(n, "type"))
	return t == "checkbox" || t == "radio"
}

func displayed(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func enabled(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && hasAttr(p, "disabled") {
			return false
		}
	}
	return true
}

func parseRect(s string) core.Bounds {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return core.Bounds{}
		}
		v[i] = n
	}
	return core.Bounds{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
}

func byID(doc *html.Node, id string) *html.Node {
	if doc == nil || id == "" {
		return nil
	}
	return htmlquery.FindOne(doc, "//*[@id="+core.XPathLiteral(id)+"]")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
