package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/driver/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func never(name string, appeared bool) Condition {
	return Condition{
		Name: name,
		Check: func(ctx context.Context) (Probe, error) {
			return Probe{Appeared: appeared, Observed: "displayed=false"}, nil
		},
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(WithTimeout(0), WithInterval(-1))
	assert.Equal(t, DefaultTimeout, w.Timeout())
	assert.Equal(t, DefaultInterval, w.interval)
}

func TestUntil_SatisfiedImmediately(t *testing.T) {
	calls := 0
	w := New(WithTimeout(time.Second))
	_, err := w.Until(context.Background(), Condition{
		Name: "ready",
		Check: func(ctx context.Context) (Probe, error) {
			calls++
			return Probe{Appeared: true, Satisfied: true}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_NeverFailsBeforeBudget(t *testing.T) {
	budget := 120 * time.Millisecond
	w := New(WithTimeout(budget), WithInterval(50*time.Millisecond), WithLogger(zaptest.NewLogger(t)))

	start := time.Now()
	_, err := w.Until(context.Background(), never("nothing", false))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTimeout))
	assert.GreaterOrEqual(t, elapsed, budget)
}

func TestUntil_TimeoutDistinguishesNeverAppeared(t *testing.T) {
	w := New(WithTimeout(30*time.Millisecond), WithInterval(10*time.Millisecond))

	_, err := w.Until(context.Background(), never("ghost", false))
	ee, ok := core.AsExecutionError(err)
	require.True(t, ok)
	assert.Equal(t, false, ee.Details["appeared"])
	assert.Equal(t, "never_appeared", ee.Details["state"])
	assert.Contains(t, ee.Error(), "never appeared")

	_, err = w.Until(context.Background(), never("stuck", true))
	ee, ok = core.AsExecutionError(err)
	require.True(t, ok)
	assert.Equal(t, true, ee.Details["appeared"])
	assert.Equal(t, "not_ready", ee.Details["state"])
	assert.Contains(t, ee.Error(), "displayed=false")
}

func TestUntil_TransientErrorsKeepPolling(t *testing.T) {
	calls := 0
	w := New(WithTimeout(time.Second), WithInterval(5*time.Millisecond))
	_, err := w.Until(context.Background(), Condition{
		Name: "flaky",
		Check: func(ctx context.Context) (Probe, error) {
			calls++
			if calls < 3 {
				return Probe{}, core.ErrCommandFailed.WithMessage("stale element")
			}
			return Probe{Appeared: true, Satisfied: true}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_FatalErrorStops(t *testing.T) {
	calls := 0
	w := New(WithTimeout(time.Second), WithInterval(5*time.Millisecond))
	_, err := w.Until(context.Background(), Condition{
		Name: "bad",
		Check: func(ctx context.Context) (Probe, error) {
			calls++
			return Probe{}, core.ErrInvalidLocator
		},
	})
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
	assert.Equal(t, 1, calls)
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(WithTimeout(time.Minute), WithInterval(time.Second))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := w.Until(ctx, never("forever", false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClickable_WaitsForReveal(t *testing.T) {
	ctx := context.Background()
	sess := mock.New(mock.Config{Pages: map[string]string{
		"mem://late": `<html><body><button id="go" hidden data-show-after="40">Go</button></body></html>`,
	}})
	defer sess.Close()
	require.NoError(t, sess.Navigate(ctx, "mem://late"))

	w := New(WithTimeout(2*time.Second), WithInterval(10*time.Millisecond))
	h, err := w.Until(ctx, Clickable(sess, core.ID("go")))
	require.NoError(t, err)
	shown, err := h.IsDisplayed(ctx)
	require.NoError(t, err)
	assert.True(t, shown)
}

func TestClickable_UsesFirstInDOMOrder(t *testing.T) {
	ctx := context.Background()
	sess := mock.New(mock.Config{Pages: map[string]string{
		"mem://two": `<html><body><span class="t" hidden>a</span><span class="t">b</span></body></html>`,
	}})
	defer sess.Close()
	require.NoError(t, sess.Navigate(ctx, "mem://two"))

	w := New(WithTimeout(30*time.Millisecond), WithInterval(10*time.Millisecond))
	_, err := w.Until(ctx, Clickable(sess, core.ClassName("t")))
	assert.True(t, errors.Is(err, core.ErrTimeout))
}

func TestHandleClickable(t *testing.T) {
	ctx := context.Background()
	sess := mock.New(mock.Config{Pages: mock.DemoPages()})
	defer sess.Close()
	require.NoError(t, sess.Navigate(ctx, mock.CheckboxDemoURL))

	found, err := sess.Locate(ctx, core.XPath("//input[@value='3']"))
	require.NoError(t, err)

	w := New(WithTimeout(30*time.Millisecond), WithInterval(10*time.Millisecond))
	_, err = w.Until(ctx, HandleClickable(found[0]))
	require.Error(t, err)
	ee, _ := core.AsExecutionError(err)
	assert.Equal(t, "not_ready", ee.Details["state"])
}

func TestTextToBe(t *testing.T) {
	ctx := context.Background()
	sess := mock.New(mock.Config{Pages: mock.DemoPages()})
	defer sess.Close()
	require.NoError(t, sess.Navigate(ctx, mock.CheckboxDemoURL))

	boxes, err := sess.Locate(ctx, core.ID("isAgeSelected"))
	require.NoError(t, err)
	require.NoError(t, boxes[0].Click(ctx))

	w := New(WithTimeout(2*time.Second), WithInterval(20*time.Millisecond))
	_, err = w.Until(ctx, TextToBe(sess, core.ID("txtAge"), "Success - Check box is checked"))
	require.NoError(t, err)
}

func TestPresent(t *testing.T) {
	ctx := context.Background()
	sess := mock.New(mock.Config{Pages: mock.DemoPages()})
	defer sess.Close()
	require.NoError(t, sess.Navigate(ctx, mock.CheckboxDemoURL))

	w := New(WithTimeout(30*time.Millisecond), WithInterval(10*time.Millisecond))
	_, err := w.Until(ctx, Present(sess, core.ID("txtAge")))
	require.NoError(t, err)

	_, err = w.Until(ctx, Present(sess, core.ID("nope")))
	assert.True(t, errors.Is(err, core.ErrTimeout))
}
