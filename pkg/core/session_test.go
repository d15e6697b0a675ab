package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandle struct {
	displayed, enabled, selected bool
	selectedCalls                int
	err                          error
}

func (h *stubHandle) ID() string { return "stub" }
func (h *stubHandle) TagName(context.Context) (string, error) { return "input", nil }
func (h *stubHandle) Rect(context.Context) (Bounds, error) { return Bounds{}, nil }
func (h *stubHandle) IsDisplayed(context.Context) (bool, error) { return h.displayed, h.err }
func (h *stubHandle) IsEnabled(context.Context) (bool, error) { return h.enabled, nil }
func (h *stubHandle) Text(context.Context) (string, error) { return "", nil }
func (h *stubHandle) Click(context.Context) error { return nil }
func (h *stubHandle) IsSelected(context.Context) (bool, error) {
	h.selectedCalls++
	return h.selected, nil
}

func TestReadState(t *testing.T) {
	h := &stubHandle{displayed: true, enabled: true, selected: true}
	st, err := ReadState(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, CheckboxState{Displayed: true, Enabled: true, Selected: true}, st)
	assert.True(t, st.Readable())
}

func TestReadState_SkipsSelectedWhenNotReadable(t *testing.T) {
	h := &stubHandle{displayed: true, enabled: false, selected: true}
	st, err := ReadState(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, st.Readable())
	assert.False(t, st.Selected)
	assert.Zero(t, h.selectedCalls)
}

func TestReadState_Error(t *testing.T) {
	_, err := ReadState(context.Background(), &stubHandle{err: errors.New("stale")})
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	b := Bounds{X: 10, Y: 20, Width: 30, Height: 40}
	assert.Equal(t, 40, b.Right())
	assert.Equal(t, 60, b.Bottom())
	cx, cy := b.Center()
	assert.Equal(t, 25, cx)
	assert.Equal(t, 40, cy)
	assert.True(t, b.Contains(10, 20))
	assert.False(t, b.Contains(40, 20))
	assert.False(t, b.IsEmpty())
	assert.True(t, Bounds{Width: 5}.IsEmpty())
	assert.Equal(t, "[10,20][40,60]", b.String())
}
