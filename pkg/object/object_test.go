package object

import (
	"context"
	"testing"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y   int
	hidden string
	Inner  *point
}

func (p *point) Sum() int { return p.X + p.Y }

func TestGetAttrStruct(t *testing.T) {
	ctx := context.Background()
	p := &point{X: 1, Y: 2, hidden: "h"}

	v, err := GetAttr(ctx, p, "X")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	sum, err := GetAttr(ctx, p, "Sum")
	require.NoError(t, err)
	fn, ok := sum.(func() int)
	require.True(t, ok)
	assert.Equal(t, 3, fn())

	_, err = GetAttr(ctx, p, "hidden")
	assert.True(t, lnerrors.IsAttributeError(err))

	_, err = GetAttr(ctx, p, "Nope")
	assert.True(t, lnerrors.IsAttributeError(err))
}

func TestGetAttrMapAndNil(t *testing.T) {
	ctx := context.Background()
	m := map[string]any{"a": 1}

	v, err := GetAttr(ctx, m, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = GetAttr(ctx, m, "b")
	assert.True(t, lnerrors.IsAttributeError(err))

	_, err = GetAttr(ctx, nil, "a")
	assert.True(t, lnerrors.IsAttributeError(err))
}

func TestTraverse(t *testing.T) {
	ctx := context.Background()
	root := NewModule("os", map[string]any{
		"path": map[string]any{"sep": "/"},
		"pt":   &point{X: 4, Inner: &point{Y: 9}},
	})

	v, err := Traverse(ctx, root, "os", "path.sep")
	require.NoError(t, err)
	assert.Equal(t, "/", v)

	v, err = Traverse(ctx, root, "os", "pt.Inner.Y")
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	v, err = Traverse(ctx, root, "os", "")
	require.NoError(t, err)
	assert.Same(t, root, v)
}

func TestTraverseReportsChainAndSegment(t *testing.T) {
	ctx := context.Background()
	root := NewModule("os", map[string]any{"path": map[string]any{}})

	_, err := Traverse(ctx, root, "os", "path.missing.deeper")
	require.Error(t, err)
	assert.True(t, lnerrors.IsAttributeError(err))
	assert.Contains(t, err.Error(), `"path.missing.deeper"`)
	assert.Contains(t, err.Error(), `at "missing"`)
}

type failingGetter struct{}

func (failingGetter) GetAttr(context.Context, string) (any, error) {
	return nil, lnerrors.NewNoModuleError("gone")
}

func TestTraversePropagatesForeignErrors(t *testing.T) {
	_, err := Traverse(context.Background(), failingGetter{}, "x", "a.b")
	assert.True(t, lnerrors.IsImportError(err))
}

func TestSetAndDelAttr(t *testing.T) {
	ctx := context.Background()

	p := &point{}
	require.NoError(t, SetAttr(ctx, p, "X", 5))
	assert.Equal(t, 5, p.X)
	assert.Error(t, SetAttr(ctx, p, "X", "wrong type"))
	assert.Error(t, SetAttr(ctx, p, "hidden", "x"))
	assert.Error(t, SetAttr(ctx, nil, "x", 1))

	m := map[string]any{}
	require.NoError(t, SetAttr(ctx, m, "k", 1))
	require.NoError(t, DelAttr(ctx, m, "k"))
	assert.Error(t, DelAttr(ctx, m, "k"))
	assert.Error(t, DelAttr(ctx, p, "X"))
}

func TestModule(t *testing.T) {
	ctx := context.Background()
	m := NewModule("pkg", map[string]any{"b": 2, "a": 1})

	assert.Equal(t, "pkg", m.Name())
	assert.Equal(t, []string{"a", "b"}, m.Dir())

	m.Set("c", 3)
	require.NoError(t, m.SetAttr(ctx, "a", 10))
	assert.Equal(t, []string{"a", "b", "c"}, m.Dir())

	v, err := m.GetAttr(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	require.NoError(t, m.DelAttr(ctx, "b"))
	assert.Equal(t, []string{"a", "c"}, m.Dir())
	assert.Error(t, m.DelAttr(ctx, "b"))

	_, err = m.GetAttr(ctx, "b")
	assert.True(t, lnerrors.IsAttributeError(err))

	snap := m.Snapshot()
	assert.Equal(t, map[string]any{"a": 10, "c": 3}, snap)
	assert.ElementsMatch(t, []string{"a", "c"}, Dir(m))
	assert.Equal(t, `Module("pkg")`, m.String())
}
