package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/depindex"
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	_ "github.com/bscript/container/runtime/registry/builtin"
	"github.com/bscript/container/runtime/execctx"
	"github.com/bscript/container/runtime/pubsub"
	"github.com/bscript/container/runtime/vm"
)

func newCtx() *execctx.ExecCtx {
	fab := pubsub.NewMemFabric()
	return execctx.New(depindex.New(), fab, fab, nil, nil)
}

func mustCompile(t *testing.T, ctx vm.Ctx, src string) *vm.Node {
	t.Helper()
	e, err := expr.Parse(src, registry.Global().Names())
	require.NoError(t, err)
	n, err := vm.Compile(ctx, registry.Global(), e)
	require.NoError(t, err)
	return n
}

func currentInt(t *testing.T, n *vm.Node) int64 {
	t.Helper()
	v, ok := n.Current()
	require.True(t, ok)
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}

func TestSumProduct(t *testing.T) {
	ctx := newCtx()
	assert.EqualValues(t, 6, currentInt(t, mustCompile(t, ctx, "sum(1, 2, 3)")))
	assert.EqualValues(t, 6, currentInt(t, mustCompile(t, ctx, "product(1, 2, 3)")))
}

func TestDivideByZeroIsError(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, "divide(4, 0)")
	v, ok := n.Current()
	require.True(t, ok)
	assert.True(t, v.IsError())
}

func TestMinMax(t *testing.T) {
	ctx := newCtx()
	assert.EqualValues(t, 1, currentInt(t, mustCompile(t, ctx, "min(3, 1, 2)")))
	assert.EqualValues(t, 3, currentInt(t, mustCompile(t, ctx, "max(3, 1, 2)")))
}

func TestAndOrNot(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, "and(true, false)")
	v, _ := n.Current()
	b, _ := v.AsBool()
	assert.False(t, b)

	n = mustCompile(t, ctx, "or(false, true)")
	v, _ = n.Current()
	b, _ = v.AsBool()
	assert.True(t, b)

	n = mustCompile(t, ctx, "not(true)")
	v, _ = n.Current()
	b, _ = v.AsBool()
	assert.False(t, b)
}

func TestIfNonePredicatePropagatesAbsence(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, "if(load_var('nope'), 1, 2)")
	_, ok := n.Current()
	assert.False(t, ok)
}

func TestCmpNullNull(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, "cmp('eq', null, null)")
	v, ok := n.Current()
	require.True(t, ok)
	b, _ := v.AsBool()
	assert.True(t, b)
}

func TestStringJoinConcat(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, `string_join(',', 'a', 'b', 'c')`)
	v, _ := n.Current()
	s, _ := v.AsString()
	assert.Equal(t, "a,b,c", s)

	n = mustCompile(t, ctx, `string_concat('a', 'b')`)
	v, _ = n.Current()
	s, _ = v.AsString()
	assert.Equal(t, "ab", s)
}

func TestCastAndIsa(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, `cast('i64', 3.9)`)
	v, _ := n.Current()
	assert.Equal(t, value.KindI64, v.Kind())

	n = mustCompile(t, ctx, `isa('string', 'x')`)
	v, _ = n.Current()
	b, _ := v.AsBool()
	assert.True(t, b)
}

func TestUniqSuppressesConsecutiveDuplicates(t *testing.T) {
	ctx := newCtx()
	e, err := expr.Parse("uniq(load_var('x'))", registry.Global().Names())
	require.NoError(t, err)
	n, err := vm.Compile(ctx, registry.Global(), e)
	require.NoError(t, err)

	_, changed := n.Update(ctx, vm.VariableEvent("x", value.I64(1)))
	assert.True(t, changed)
	_, changed = n.Update(ctx, vm.VariableEvent("x", value.I64(1)))
	assert.False(t, changed)
	_, changed = n.Update(ctx, vm.VariableEvent("x", value.I64(2)))
	assert.True(t, changed)
}

func TestAnyPicksWhicheverChildUpdatedThisTick(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, "any(load_var('a'), load_var('b'))")
	_, ok := n.Current()
	assert.False(t, ok, "no child has a value yet")

	_, changed := n.Update(ctx, vm.VariableEvent("b", value.I64(2)))
	require.True(t, changed)
	assert.EqualValues(t, 2, currentInt(t, n))

	// a later event naming the other child still wins, and an event naming
	// neither leaves the latched value untouched.
	_, changed = n.Update(ctx, vm.VariableEvent("a", value.I64(10)))
	require.True(t, changed)
	assert.EqualValues(t, 10, currentInt(t, n))

	_, changed = n.Update(ctx, vm.VariableEvent("c", value.I64(99)))
	assert.False(t, changed)
	assert.EqualValues(t, 10, currentInt(t, n))
}

func TestAllReturnsCurrentOnlyWhenEveryChildAgrees(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, "all(load_var('a'), load_var('b'))")
	_, ok := n.Current()
	assert.False(t, ok, "no child has a value yet")

	_, changed := n.Update(ctx, vm.VariableEvent("a", value.I64(5)))
	assert.False(t, changed, "only one of two children has a value")
	_, ok = n.Current()
	assert.False(t, ok)

	_, changed = n.Update(ctx, vm.VariableEvent("b", value.I64(5)))
	require.True(t, changed, "both children now agree on 5")
	assert.EqualValues(t, 5, currentInt(t, n))

	_, changed = n.Update(ctx, vm.VariableEvent("b", value.I64(9)))
	assert.False(t, changed, "children disagree, so all has no current value this tick")
}

func TestEvalRecompilesOnSourceChange(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, `eval(load_var('src'))`)

	_, changed := n.Update(ctx, vm.VariableEvent("src", value.String("1")))
	require.True(t, changed)
	assert.EqualValues(t, 1, currentInt(t, n))

	_, changed = n.Update(ctx, vm.VariableEvent("src", value.String("sum(1, 2)")))
	require.True(t, changed)
	assert.EqualValues(t, 3, currentInt(t, n))
}

func TestEvalParseFailureIsError(t *testing.T) {
	ctx := newCtx()
	n := mustCompile(t, ctx, `eval('(((')`)
	v, ok := n.Current()
	require.True(t, ok)
	assert.True(t, v.IsError())
}
