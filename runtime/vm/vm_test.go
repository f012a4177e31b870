package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

type fakeCtx struct{}

func (fakeCtx) DurableSubscribe(value.Path, expr.ID) vm.SubID      { return 0 }
func (fakeCtx) RefVar(string, expr.ID) (value.Value, bool)         { return value.Value{}, false }
func (fakeCtx) SetVar(string, value.Value)                         {}
func (fakeCtx) CallRpc(value.Path, []value.Value, expr.ID) string  { return "" }
func (fakeCtx) RegisterRef(value.Path, expr.ID)                    {}
func (fakeCtx) CurrentPublished(value.Path) (value.Value, bool)    { return value.Value{}, false }
func (fakeCtx) Clear(expr.ID)                                      {}
func (fakeCtx) WriteCell(value.Path, value.Value)                  {}

type sumImpl struct{}

func (sumImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return sumImpl{}.Current(children)
}

func (sumImpl) Current(children []*vm.Node) (value.Value, bool) {
	total := value.I64(0)
	for _, c := range children {
		if v, ok := c.Current(); ok {
			total = value.Add(total, v)
		}
	}
	return total, true
}

func TestCompileConstant(t *testing.T) {
	c := expr.NewConstant(value.I64(5))
	n, err := vm.Compile(fakeCtx{}, registry.New(), c)
	require.NoError(t, err)
	v, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, value.I64(5), v)
}

func TestCompileApplyInvokesFactory(t *testing.T) {
	reg := registry.New()
	reg.Register("testsum", registry.Descriptor{Arity: registry.AtLeast(0)}, vm.NodeFactory(
		func(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
			return sumImpl{}, nil
		},
	))

	a := expr.NewApply("testsum", expr.NewConstant(value.I64(2)), expr.NewConstant(value.I64(3)))
	n, err := vm.Compile(fakeCtx{}, reg, a)
	require.NoError(t, err)
	v, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, value.KindI64, v.Kind())
	i, _ := v.AsInt()
	assert.Equal(t, int64(5), i)
}

func TestCompileUnknownFunctionErrors(t *testing.T) {
	a := expr.NewApply("nope")
	_, err := vm.Compile(fakeCtx{}, registry.New(), a)
	require.Error(t, err)
}

func TestUpdatePropagatesChange(t *testing.T) {
	reg := registry.New()
	reg.Register("testsum", registry.Descriptor{}, vm.NodeFactory(
		func(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
			return sumImpl{}, nil
		},
	))
	a := expr.NewApply("testsum", expr.NewConstant(value.I64(1)))
	n, err := vm.Compile(fakeCtx{}, reg, a)
	require.NoError(t, err)
	v, changed := n.Update(fakeCtx{}, vm.VariableEvent("x", value.I64(9)))
	require.True(t, changed)
	i, _ := v.AsInt()
	assert.Equal(t, int64(1), i)
}
