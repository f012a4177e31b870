package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/container"
	_ "github.com/bscript/container/runtime/registry/builtin"
	"github.com/bscript/container/runtime/pubsub"
	"github.com/bscript/container/runtime/rpcapi"
	"github.com/bscript/container/runtime/store"
)

func newContainer() (*container.Container, *store.MemDB, *pubsub.MemFabric) {
	db := store.NewMemDB()
	fab := pubsub.NewMemFabric()
	c := container.New("/base", db, fab, fab, nil)
	return c, db, fab
}

func TestPublishFormulaSeedsPublishedValue(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/x", "sum(1, 2, 3)", ""))

	v, ok := fab.Current("/base/x")
	require.True(t, ok)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 6, i)

	fsrc, ok := fab.Current("/base/x/.formula")
	require.True(t, ok)
	s, _ := fsrc.AsString()
	assert.Equal(t, "sum(1, 2, 3)", s)
}

func TestPublishFormulaParseErrorPublishesErrorValue(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/bad", "sum(1, 2", ""))

	v, ok := fab.Current("/base/bad")
	require.True(t, ok)
	assert.True(t, v.IsError())
}

func TestRefFollowsAnotherFormulasOutput(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/src", "sum(1, 2)", ""))
	require.NoError(t, c.PublishFormula("/base/derived", "ref('/base/src')", ""))

	require.NoError(t, c.ProcessWrite("/base/src", value.I64(10)))

	v, ok := fab.Current("/base/derived")
	require.True(t, ok)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 10, i)
}

func TestDeletingReferencedRowEmitsRefError(t *testing.T) {
	c, db, fab := newContainer()
	src := "sum(1, 2)"
	require.Equal(t, value.KindOk, c.HandleRpc(rpcapi.SetFormula{Path: "/base/src", Formula: &src}).Kind())
	require.NoError(t, c.PublishFormula("/base/derived", "ref('/base/src')", ""))

	require.NoError(t, db.Remove("/base/src"))
	require.NoError(t, c.ProcessUpdate())

	v, ok := fab.Current("/base/derived")
	require.True(t, ok)
	require.True(t, v.IsError())
	assert.Equal(t, "#REF", v.ErrorMessage())
}

func TestRefToUnpublishedPathResolvesToRefError(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/a", "ref('/base/never-published')", ""))

	v, ok := fab.Current("/base/a")
	require.True(t, ok)
	require.True(t, v.IsError())
	assert.Equal(t, "#REF", v.ErrorMessage())
}

func TestCyclicRefsBothResolveToRefError(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/a", "ref('/base/b')", ""))
	require.NoError(t, c.PublishFormula("/base/b", "ref('/base/a')", ""))

	va, ok := fab.Current("/base/a")
	require.True(t, ok)
	require.True(t, va.IsError())
	assert.Equal(t, "#REF", va.ErrorMessage())

	vb, ok := fab.Current("/base/b")
	require.True(t, ok)
	require.True(t, vb.IsError())
	assert.Equal(t, "#REF", vb.ErrorMessage())
}

func TestSetVariableFansOutToLoadVar(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/v", "load_var('count')", ""))

	require.NoError(t, c.SetVariable("count", value.I64(42)))

	v, ok := fab.Current("/base/v")
	require.True(t, ok)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 42, i)
}

func TestOnWriteFiresOnExternalWriteWithoutMutatingTheCell(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/g", "42", "store_var('last_write', ref('/base/g'))"))
	require.NoError(t, c.PublishFormula("/base/echo", "load_var('last_write')", ""))

	require.NoError(t, c.ProcessWrite("/base/g", value.I64(7)))

	gVal, ok := fab.Current("/base/g")
	require.True(t, ok)
	gi, ok := gVal.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 42, gi, "on-write must not mutate the formula's own published cell")

	echoVal, ok := fab.Current("/base/echo")
	require.True(t, ok)
	ei, ok := echoVal.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 7, ei)
}

func TestRewritingFormulaSourceRecompiles(t *testing.T) {
	c, _, fab := newContainer()
	require.NoError(t, c.PublishFormula("/base/x", "sum(1, 2)", ""))

	require.NoError(t, c.ProcessWrite("/base/x/.formula", value.String("sum(10, 20)")))

	v, ok := fab.Current("/base/x")
	require.True(t, ok)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 30, i)
}

func TestHandleRpcRejectsPathOutsideBase(t *testing.T) {
	c, _, _ := newContainer()
	v := c.HandleRpc(rpcapi.Delete{Path: value.Path("/other/x")})
	assert.True(t, v.IsError())
}

func TestHandleRpcSetDataWithinBase(t *testing.T) {
	c, _, fab := newContainer()
	v := c.HandleRpc(rpcapi.SetData{Path: value.Path("/base/y"), Value: value.I64(9)})
	assert.Equal(t, value.KindOk, v.Kind())

	got, ok := fab.Current("/base/y")
	require.True(t, ok)
	i, ok := got.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 9, i)
}
