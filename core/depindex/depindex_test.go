package depindex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/depindex"
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/value"
)

func TestInsertAndLookup(t *testing.T) {
	lc := depindex.New()
	const id expr.ID = 1
	lc.InsertVar("x", id)
	lc.InsertSub(depindex.SubID(7), id)
	lc.InsertRpc("call-1", id)
	lc.InsertRef(value.Path("/y"), id)

	assert.ElementsMatch(t, []expr.ID{id}, lc.ExprsForVar("x"))
	assert.ElementsMatch(t, []expr.ID{id}, lc.ExprsForSub(depindex.SubID(7)))
	assert.ElementsMatch(t, []expr.ID{id}, lc.ExprsForRpc("call-1"))
	assert.ElementsMatch(t, []expr.ID{id}, lc.ExprsForRef(value.Path("/y")))

	require.NotPanics(t, lc.CheckSync)
}

func TestUnrefRemovesAllBuckets(t *testing.T) {
	lc := depindex.New()
	const id expr.ID = 2
	lc.InsertVar("x", id)
	lc.InsertRef(value.Path("/y"), id)

	lc.Unref(id)

	assert.Empty(t, lc.ExprsForVar("x"))
	assert.Empty(t, lc.ExprsForRef(value.Path("/y")))
	require.NotPanics(t, lc.CheckSync)
}

func TestUnrefOfUnknownIDIsNoop(t *testing.T) {
	lc := depindex.New()
	assert.NotPanics(t, func() { lc.Unref(expr.ID(999)) })
}

func TestSharedKeyAcrossMultipleExprs(t *testing.T) {
	lc := depindex.New()
	const a, b expr.ID = 1, 2
	lc.InsertVar("x", a)
	lc.InsertVar("x", b)
	assert.ElementsMatch(t, []expr.ID{a, b}, lc.ExprsForVar("x"))

	lc.Unref(a)
	assert.ElementsMatch(t, []expr.ID{b}, lc.ExprsForVar("x"))
}
