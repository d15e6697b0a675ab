package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// refsVar holds located elements on the page. It is reset by navigation.
const refsVar = "window.__checkboxRefs"

// locateScript returns a JS expression evaluating to the ref ids of all
// elements matching by, in document order. A node keeps its ref for the life
// of the page.
func locateScript(by core.By) (string, error) {
	using, value, err := by.W3C()
	if err != nil {
		return "", err
	}
	kind := "css"
	if using == "xpath" {
		kind = "xpath"
	}
	lit, err := json.MarshalToString(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function(kind, value) {
	var found = [];
	if (kind === "xpath") {
		var snap = document.evaluate(value, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (var i = 0; i < snap.snapshotLength; i++) {
			var n = snap.snapshotItem(i);
			if (n.nodeType === 1) found.push(n);
		}
	} else {
		found = Array.prototype.slice.call(document.querySelectorAll(value));
	}
	var refs = %[1]s = %[1]s || [];
	return found.map(function(el) {
		var i = refs.indexOf(el);
		if (i < 0) {
			refs.push(el);
			i = refs.length - 1;
		}
		return String(i);
	});
})(%[2]q, %[3]s)`, refsVar, kind, lit), nil
}

// describeScript returns a JS expression evaluating to an elementState for ref.
func describeScript(ref string) string {
	return fmt.Sprintf(`(function(ref) {
	var el = (%s || [])[ref];
	if (!el || !el.isConnected) throw new Error("stale element reference");
	var r = el.getBoundingClientRect();
	var st = window.getComputedStyle(el);
	var displayed = st.display !== "none" && st.visibility !== "hidden" &&
		el.getClientRects().length > 0 && r.width > 0 && r.height > 0;
	var tag = el.tagName.toLowerCase();
	var selected = false;
	if (tag === "input" && (el.type === "checkbox" || el.type === "radio")) selected = el.checked;
	if (tag === "option") selected = el.selected;
	return {
		tag: tag,
		x: Math.round(r.left + window.scrollX),
		y: Math.round(r.top + window.scrollY),
		width: displayed ? Math.round(r.width) : 0,
		height: displayed ? Math.round(r.height) : 0,
		displayed: displayed,
		enabled: !el.disabled,
		selected: selected,
		text: displayed ? (el.innerText || "").replace(/\s+/g, " ").trim() : ""
	};
})(%q)`, refsVar, ref)
}

// clickPointScript scrolls ref into view and returns its viewport centre.
func clickPointScript(ref string) string {
	return fmt.Sprintf(`(function(ref) {
	var el = (%s || [])[ref];
	if (!el || !el.isConnected) throw new Error("stale element reference");
	el.scrollIntoView({block: "center", inline: "center"});
	var r = el.getBoundingClientRect();
	return {x: r.left + r.width / 2, y: r.top + r.height / 2, visible: r.width > 0 && r.height > 0};
})(%q)`, refsVar, ref)
}

type elementState struct {
	Tag       string `json:"tag"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Displayed bool   `json:"displayed"`
	Enabled   bool   `json:"enabled"`
	Selected  bool   `json:"selected"`
	Text      string `json:"text"`
}

type clickPoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}
