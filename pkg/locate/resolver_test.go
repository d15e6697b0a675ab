package locate

import (
	"context"
	"errors"
	"testing"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/driver/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func demoResolver(t *testing.T, url string) (*Resolver, *mock.Session) {
	t.Helper()
	sess := mock.New(mock.Config{Pages: mock.DemoPages()})
	t.Cleanup(func() { _ = sess.Close() })
	require.NoError(t, sess.Navigate(context.Background(), url))
	return New(sess, WithLogger(zaptest.NewLogger(t))), sess
}

func TestAnchor_By(t *testing.T) {
	by, err := Anchor{Text: "Green"}.By()
	require.NoError(t, err)
	assert.Equal(t, core.TextContains("Green"), by)

	by, err = Anchor{Text: "Folder 2", Tag: "span"}.By()
	require.NoError(t, err)
	assert.Equal(t, core.XPath("//span[contains(text(), 'Folder 2')]"), by)

	_, err = Anchor{}.By()
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
}

func TestFilter_By(t *testing.T) {
	by, err := Filter{Tag: "div"}.By()
	require.NoError(t, err)
	assert.Equal(t, core.TagName("div"), by)

	by, err = Filter{Tag: "div", ClassName: "ckbox"}.By()
	require.NoError(t, err)
	assert.Equal(t, core.CSS("div.ckbox"), by)

	by, err = Filter{ClassName: "ckbox"}.By()
	require.NoError(t, err)
	assert.Equal(t, core.ClassName("ckbox"), by)

	_, err = Filter{}.By()
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
}

func TestResolve_TableRow(t *testing.T) {
	ctx := context.Background()
	r, sess := demoResolver(t, mock.TableRecordsURL)

	got, err := r.Resolve(ctx, Anchor{Text: "Green", Tag: "span"}, LeftOf, Filter{Tag: "div"})
	require.NoError(t, err)

	want, err := sess.Locate(ctx, core.XPath(
		"//span[contains(text(), 'Green')]/parent::h4/parent::div/parent::div/parent::td/preceding-sibling::td/div"))
	require.NoError(t, err)
	require.Len(t, want, 1)
	assert.Equal(t, want[0].ID(), got.ID())
}

func TestResolve_OtherRowsPickTheirOwnCheckbox(t *testing.T) {
	ctx := context.Background()
	r, sess := demoResolver(t, mock.TableRecordsURL)

	got, err := r.Resolve(ctx, Anchor{Text: "Red"}, LeftOf, Filter{Tag: "div", ClassName: "ckbox"})
	require.NoError(t, err)

	want, err := sess.Locate(ctx, core.XPath("//tr[3]//div[@class='ckbox']"))
	require.NoError(t, err)
	assert.Equal(t, want[0].ID(), got.ID())
}

func TestResolve_TreeLeaf(t *testing.T) {
	ctx := context.Background()
	r, sess := demoResolver(t, mock.TreeViewURL)

	got, err := r.Resolve(ctx, Anchor{Text: "Folder 2", Tag: "span"}, LeftOf, Filter{Tag: "div"})
	require.NoError(t, err)

	want, err := sess.Locate(ctx, core.XPath("//span[text()='Folder 2']/parent::a/preceding-sibling::div"))
	require.NoError(t, err)
	assert.Equal(t, want[0].ID(), got.ID())
}

func TestResolve_AnchorNotFound(t *testing.T) {
	r, _ := demoResolver(t, mock.TableRecordsURL)
	_, err := r.Resolve(context.Background(), Anchor{Text: "Purple"}, LeftOf, Filter{Tag: "div"})
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
}

func TestResolve_RelationUnsatisfiable(t *testing.T) {
	r, _ := demoResolver(t, mock.TableRecordsURL)
	_, err := r.Resolve(context.Background(), Anchor{Text: "Green", Tag: "span"}, RightOf, Filter{Tag: "div", ClassName: "ckbox"})
	assert.True(t, errors.Is(err, core.ErrRelationUnsatisfiable))
}

func TestResolve_HiddenAnchor(t *testing.T) {
	r, _ := demoResolver(t, mock.TreeViewURL)
	_, err := r.Resolve(context.Background(), Anchor{Text: "Folder 2.1", Tag: "span"}, LeftOf, Filter{Tag: "div"})
	assert.True(t, errors.Is(err, core.ErrRelationUnsatisfiable))
}

func TestResolve_InvalidFilter(t *testing.T) {
	r, _ := demoResolver(t, mock.TableRecordsURL)
	_, err := r.Resolve(context.Background(), Anchor{Text: "Green"}, LeftOf, Filter{})
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
}

func TestResolve_Idempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := demoResolver(t, mock.TreeViewURL)

	a, err := r.Resolve(ctx, Anchor{Text: "Folder 1", Tag: "span"}, LeftOf, Filter{Tag: "div"})
	require.NoError(t, err)
	b, err := r.Resolve(ctx, Anchor{Text: "Folder 1", Tag: "span"}, LeftOf, Filter{Tag: "div"})
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())
}

type failingSession struct {
	core.Session
	err error
}

func (s failingSession) Locate(context.Context, core.By) ([]core.ElementHandle, error) {
	return nil, s.err
}

func TestAnchor_LocateErrorIsCommandFailure(t *testing.T) {
	transport := errors.New("connection reset by peer")
	r := New(failingSession{err: transport}, WithLogger(zaptest.NewLogger(t)))

	_, err := r.Anchor(context.Background(), Anchor{Text: "Green"})
	assert.True(t, errors.Is(err, core.ErrCommandFailed))
	assert.True(t, errors.Is(err, transport))

	// Classified driver errors keep their category.
	r = New(failingSession{err: core.ErrInvalidLocator.WithMessage("bad xpath")}, WithLogger(zaptest.NewLogger(t)))
	_, err = r.Anchor(context.Background(), Anchor{Text: "Green"})
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
	assert.False(t, errors.Is(err, core.ErrCommandFailed))
}
