package wait

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Present holds once by matches at least one element.
func Present(sess core.Session, by core.By) Condition {
	return Condition{
		Name: "presence of " + by.String(),
		Check: func(ctx context.Context) (Probe, error) {
			first, err := firstMatch(ctx, sess, by)
			if err != nil || first == nil {
				return Probe{Observed: "no match"}, err
			}
			return Probe{Element: first, Appeared: true, Satisfied: true}, nil
		},
	}
}

// Clickable holds once the first element matching by, in DOM order, is both
// displayed and enabled.
func Clickable(sess core.Session, by core.By) Condition {
	return Condition{
		Name: "clickable " + by.String(),
		Check: func(ctx context.Context) (Probe, error) {
			first, err := firstMatch(ctx, sess, by)
			if err != nil || first == nil {
				return Probe{Observed: "no match"}, err
			}
			return clickable(ctx, first)
		},
	}
}

// HandleClickable holds once an already located element is displayed and enabled.
func HandleClickable(h core.ElementHandle) Condition {
	return Condition{
		Name: "clickable element " + h.ID(),
		Check: func(ctx context.Context) (Probe, error) {
			return clickable(ctx, h)
		},
	}
}

// TextToBe holds once the first element matching by has exactly the given text.
func TextToBe(sess core.Session, by core.By, expected string) Condition {
	return Condition{
		Name: fmt.Sprintf("text of %s to be %q", by, expected),
		Check: func(ctx context.Context) (Probe, error) {
			first, err := firstMatch(ctx, sess, by)
			if err != nil || first == nil {
				return Probe{Observed: "no match"}, err
			}
			text, err := first.Text(ctx)
			if err != nil {
				return Probe{}, core.CommandError("text", err)
			}
			return Probe{
				Element:   first,
				Appeared:  true,
				Satisfied: text == expected,
				Observed:  fmt.Sprintf("text=%q", text),
			}, nil
		},
	}
}

func clickable(ctx context.Context, h core.ElementHandle) (Probe, error) {
	displayed, err := h.IsDisplayed(ctx)
	if err != nil {
		return Probe{}, core.CommandError("isDisplayed", err)
	}
	enabled, err := h.IsEnabled(ctx)
	if err != nil {
		return Probe{}, core.CommandError("isEnabled", err)
	}
	return Probe{
		Element:   h,
		Appeared:  true,
		Satisfied: displayed && enabled,
		Observed:  fmt.Sprintf("displayed=%t enabled=%t", displayed, enabled),
	}, nil
}

func firstMatch(ctx context.Context, sess core.Session, by core.By) (core.ElementHandle, error) {
	found, err := sess.Locate(ctx, by)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}
