package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/value"
)

func TestParseConstants(t *testing.T) {
	e, err := expr.Parse("42", nil)
	require.NoError(t, err)
	c, ok := e.(*expr.Constant)
	require.True(t, ok)
	assert.Equal(t, value.KindI64, c.Value.Kind())

	e, err = expr.Parse("3.5", nil)
	require.NoError(t, err)
	c = e.(*expr.Constant)
	assert.Equal(t, value.KindF64, c.Value.Kind())

	e, err = expr.Parse("true", nil)
	require.NoError(t, err)
	c = e.(*expr.Constant)
	b, ok := c.Value.AsBool()
	require.True(t, ok)
	assert.True(t, b)

	e, err = expr.Parse("null", nil)
	require.NoError(t, err)
	c = e.(*expr.Constant)
	assert.True(t, c.Value.IsNull())

	e, err = expr.Parse(`"hello"`, nil)
	require.NoError(t, err)
	c = e.(*expr.Constant)
	s, ok := c.Value.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestParseApply(t *testing.T) {
	e, err := expr.Parse("sum(load:/x, 2)", nil)
	require.NoError(t, err)
	ap, ok := e.(*expr.Apply)
	require.True(t, ok)
	assert.Equal(t, "sum", ap.Function)
	require.Len(t, ap.Args, 2)

	load, ok := ap.Args[0].(*expr.Apply)
	require.True(t, ok)
	assert.Equal(t, "load", load.Function)
	require.Len(t, load.Args, 1)
	pathConst := load.Args[0].(*expr.Constant)
	s, _ := pathConst.Value.AsString()
	assert.Equal(t, "/x", s)

	two := ap.Args[1].(*expr.Constant)
	assert.Equal(t, value.KindI64, two.Value.Kind())
}

func TestParseColonShorthand(t *testing.T) {
	e, err := expr.Parse("load:/src", nil)
	require.NoError(t, err)
	ap := e.(*expr.Apply)
	assert.Equal(t, "load", ap.Function)
	require.Len(t, ap.Args, 1)
}

func TestParseZeroArgCall(t *testing.T) {
	e, err := expr.Parse("clear", nil)
	require.NoError(t, err)
	ap := e.(*expr.Apply)
	assert.Equal(t, "clear", ap.Function)
	assert.Empty(t, ap.Args)
}

func TestParseNestedCalls(t *testing.T) {
	e, err := expr.Parse("call('/svc/echo', 'msg', load:/m)", nil)
	require.NoError(t, err)
	ap := e.(*expr.Apply)
	assert.Equal(t, "call", ap.Function)
	require.Len(t, ap.Args, 3)
}

func TestParseUnknownFunctionSuggestsClosest(t *testing.T) {
	_, err := expr.Parse("sume(1, 2)", []string{"sum", "product", "mean"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
}

func TestParseUnterminatedString(t *testing.T) {
	_, err := expr.Parse(`"unterminated`, nil)
	require.Error(t, err)
}

func TestExpressionIDsAreFresh(t *testing.T) {
	a, err := expr.Parse("1", nil)
	require.NoError(t, err)
	b, err := expr.Parse("1", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ExprID(), b.ExprID())
}
