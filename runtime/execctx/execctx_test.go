package execctx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/depindex"
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/execctx"
	"github.com/bscript/container/runtime/pubsub"
	"github.com/bscript/container/runtime/vm"
)

func TestDurableSubscribeDeliversUpdates(t *testing.T) {
	fab := pubsub.NewMemFabric()
	lc := depindex.New()
	var got []vm.Event
	ctx := execctx.New(lc, fab, fab, nil, func(ev vm.Event) { got = append(got, ev) })

	const owner expr.ID = 1
	sub := ctx.DurableSubscribe(value.Path("/x"), owner)
	require.NotZero(t, sub)
	assert.Contains(t, lc.ExprsForSub(depindex.SubID(sub)), owner)

	require.NoError(t, fab.Publish(value.Path("/x"), value.I64(5)))
	require.Len(t, got, 1)
	gotSub, v, ok := got[0].IsNetidx()
	require.True(t, ok)
	assert.Equal(t, sub, gotSub)
	i, _ := v.AsInt()
	assert.Equal(t, int64(5), i)
}

func TestRefVarRegistersDependency(t *testing.T) {
	lc := depindex.New()
	fab := pubsub.NewMemFabric()
	ctx := execctx.New(lc, fab, fab, nil, nil)
	const owner expr.ID = 2
	ctx.SetVar("x", value.I64(1))
	v, ok := ctx.RefVar("x", owner)
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(1), i)
	assert.Contains(t, lc.ExprsForVar("x"), owner)
}

func TestCallRpcDeliversReplyByCallID(t *testing.T) {
	lc := depindex.New()
	var calls []string
	caller := func(path value.Path, args []value.Value, callID string) {
		calls = append(calls, callID)
	}
	var got []vm.Event
	fab := pubsub.NewMemFabric()
	ctx := execctx.New(lc, fab, fab, caller, func(ev vm.Event) { got = append(got, ev) })

	const owner expr.ID = 3
	callID := ctx.CallRpc(value.Path("/svc/echo"), []value.Value{value.String("hi")}, owner)
	require.Len(t, calls, 1)
	assert.Equal(t, callID, calls[0])

	ctx.DeliverRpcReply(callID, value.Ok())
	require.Len(t, got, 1)
	gotID, v, ok := got[0].IsRpc()
	require.True(t, ok)
	assert.Equal(t, callID, gotID)
	assert.Equal(t, value.KindOk, v.Kind())
}

func TestClearRemovesAllDependencies(t *testing.T) {
	lc := depindex.New()
	fab := pubsub.NewMemFabric()
	ctx := execctx.New(lc, fab, fab, nil, nil)
	const owner expr.ID = 4
	ctx.RegisterRef(value.Path("/y"), owner)
	ctx.Clear(owner)
	assert.Empty(t, lc.ExprsForRef(value.Path("/y")))
}
