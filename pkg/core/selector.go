package core

import (
	"fmt"
	"strings"
)

// SelectorKind names a locator strategy.
type SelectorKind string

// SelectorKind values
const (
	ByID           SelectorKind = "id"
	ByClassName    SelectorKind = "className"
	ByXPath        SelectorKind = "xpath"
	ByCSS          SelectorKind = "css"
	ByTagName      SelectorKind = "tag"
	ByTextContains SelectorKind = "text" // case-sensitive substring of an element's own text
)

// By is a single locator: strategy plus value.
type By struct {
	Kind  SelectorKind `json:"kind" yaml:"kind"`
	Value string       `json:"value" yaml:"value"`
}

// ID returns a locator matching the element id.
func ID(id string) By { return By{Kind: ByID, Value: id} }

// ClassName returns a locator matching every listed class (space separated).
func ClassName(class string) By { return By{Kind: ByClassName, Value: class} }

// XPath returns an xpath locator.
func XPath(expr string) By { return By{Kind: ByXPath, Value: expr} }

// CSS returns a CSS selector locator.
func CSS(sel string) By { return By{Kind: ByCSS, Value: sel} }

// TagName returns a locator matching elements by tag.
func TagName(tag string) By { return By{Kind: ByTagName, Value: tag} }

// TextContains returns a locator matching elements whose own text contains text.
func TextContains(text string) By { return By{Kind: ByTextContains, Value: text} }

// IsEmpty returns true if no strategy value is set.
func (b By) IsEmpty() bool {
	return strings.TrimSpace(b.Value) == ""
}

// String returns a human-readable description like id="value".
func (b By) String() string {
	return fmt.Sprintf("%s=%q", b.Kind, b.Value)
}

// W3C translates the locator into a W3C WebDriver (using, value) pair.
// WebDriver only knows css selector, link text, partial link text, tag name
// and xpath, so id/className/text are rewritten the way Selenium clients do.
func (b By) W3C() (string, string, error) {
	switch b.Kind {
	case ByCSS:
		return "css selector", b.Value, nil
	case ByXPath:
		return "xpath", b.Value, nil
	case ByTagName:
		return "tag name", b.Value, nil
	case ByID, ByClassName:
		css, err := b.AsCSS()
		return "css selector", css, err
	case ByTextContains:
		xp, err := b.AsXPath()
		return "xpath", xp, err
	default:
		return "", "", fmt.Errorf("unsupported selector kind %q", b.Kind)
	}
}

// AsCSS returns an equivalent CSS selector. Only id, className, tag and css
// locators have one.
func (b By) AsCSS() (string, error) {
	switch b.Kind {
	case ByCSS:
		return b.Value, nil
	case ByTagName:
		return b.Value, nil
	case ByID:
		return fmt.Sprintf(`[id=%s]`, cssString(b.Value)), nil
	case ByClassName:
		classes := strings.Fields(b.Value)
		if len(classes) == 0 {
			return "", fmt.Errorf("empty class name")
		}
		var sb strings.Builder
		for _, c := range classes {
			sb.WriteString("." + cssIdent(c))
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("%s locator has no CSS form", b.Kind)
	}
}

// AsXPath returns an equivalent xpath expression.
func (b By) AsXPath() (string, error) {
	switch b.Kind {
	case ByXPath:
		return b.Value, nil
	case ByTextContains:
		return fmt.Sprintf(`//*[contains(text(), %s)]`, XPathLiteral(b.Value)), nil
	case ByID:
		return fmt.Sprintf(`//*[@id=%s]`, XPathLiteral(b.Value)), nil
	case ByTagName:
		return "//" + b.Value, nil
	case ByClassName:
		classes := strings.Fields(b.Value)
		if len(classes) == 0 {
			return "", fmt.Errorf("empty class name")
		}
		preds := make([]string, len(classes))
		for i, c := range classes {
			preds[i] = fmt.Sprintf(`contains(concat(' ', normalize-space(@class), ' '), %s)`, XPathLiteral(" "+c+" "))
		}
		return "//*[" + strings.Join(preds, " and ") + "]", nil
	default:
		return "", fmt.Errorf("%s locator has no xpath form", b.Kind)
	}
}

// XPathLiteral quotes s as an xpath string literal. XPath 1.0 has no escape
// sequences, so strings holding both quote kinds are built with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func cssIdent(s string) string {
	var sb strings.Builder
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-', c >= 0x80:
			sb.WriteRune(c)
		case c >= '0' && c <= '9' && i > 0:
			sb.WriteRune(c)
		default:
			sb.WriteString(fmt.Sprintf(`\%x `, c))
		}
	}
	return sb.String()
}
