// Package execctx implements ExecCtx, the cross-cutting services object
// VM nodes invoke: subscribe, set/read variable, call RPC,
// register back-references. It is the concrete type behind vm.Ctx and the
// container's sole mutable handle into core/depindex.Lc, per the
// single-threaded cooperative scheduling model.
package execctx

import (
	"strconv"
	"sync/atomic"

	"github.com/bscript/container/core/depindex"
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/pubsub"
	"github.com/bscript/container/runtime/vm"
)

// RpcCaller dispatches one RPC call identified by callID, which the caller
// has already minted; it returns nothing. The actual reply arrives later as a vm.RpcEvent delivered through PostEvent
// — it is never returned synchronously, matching the worker-task dispatch
// model in "RPC dispatch".
type RpcCaller func(path value.Path, args []value.Value, callID string)

// ExecCtx is the concrete vm.Ctx implementation.
type ExecCtx struct {
	lc        *depindex.Lc
	subs      pubsub.Subscriber
	pub       pubsub.Publisher
	vars      map[string]value.Value
	caller    RpcCaller
	postEvent func(vm.Event)

	subHandles map[depindex.SubID]pubsub.Dval
	nextCallID atomic.Uint64

	pendingWrites []Write
	pendingVars   []VarWrite
}

// VarWrite is one queued variable assignment produced by a `store_var`
// node. Like Write, the container drains these each tick and is
// responsible for fanning the assignment out to every dependent
// expression, since ExecCtx itself has no notion of the dependency graph's
// consumers beyond recording the dependency.
type VarWrite struct {
	Name  string
	Value value.Value
}

// Write is one queued external write produced by a `store` node
// (`store_var` queues a VarWrite instead). The container drains PendingWrites each tick and applies them
// through its own DB/publisher plumbing — ExecCtx only queues, it never
// writes directly, since the DB is mutated exclusively by the container
// task.
type Write struct {
	Path  value.Path
	Value value.Value
}

// New builds an ExecCtx. postEvent is called (synchronously, from
// whichever task owns the subscription/RPC callback) every time a
// subscription update or RPC reply arrives — the container wires this to
// its own event queue. pub may be nil in tests that never call `ref`.
func New(lc *depindex.Lc, subs pubsub.Subscriber, pub pubsub.Publisher, caller RpcCaller, postEvent func(vm.Event)) *ExecCtx {
	return &ExecCtx{
		lc:         lc,
		subs:       subs,
		pub:        pub,
		vars:       make(map[string]value.Value),
		caller:     caller,
		postEvent:  postEvent,
		subHandles: make(map[depindex.SubID]pubsub.Dval),
	}
}

// Lc exposes the dependency index, e.g. for the container's update_refs.
func (c *ExecCtx) Lc() *depindex.Lc { return c.lc }

// DurableSubscribe opens a new subscription to path on behalf of owner
// (an existing subscription to the same path is not reused) and registers owner's dependency on the resulting SubID.
func (c *ExecCtx) DurableSubscribe(path value.Path, owner expr.ID) vm.SubID {
	d, err := c.subs.DurableSubscribe(path)
	if err != nil {
		return 0
	}
	id := depindex.SubID(d.ID())
	c.subHandles[id] = d
	c.lc.InsertSub(id, owner)
	d.Updates(0, func(v value.Value) {
		if c.postEvent != nil {
			c.postEvent(vm.NetidxEvent(vm.SubID(id), v))
		}
	})
	return vm.SubID(id)
}

// RefVar reads a variable's current value and registers owner's
// dependency on its name.
func (c *ExecCtx) RefVar(name string, owner expr.ID) (value.Value, bool) {
	c.lc.InsertVar(name, owner)
	v, ok := c.vars[name]
	return v, ok
}

// SetVar assigns a variable and queues it for the container to fan out as
// a vm.VariableEvent to every dependent expr.ID found via Lc.ExprsForVar,
// var_updates drain.
func (c *ExecCtx) SetVar(name string, v value.Value) {
	c.vars[name] = v
	c.pendingVars = append(c.pendingVars, VarWrite{Name: name, Value: v})
}

// CallRpc dispatches an RPC call and registers owner's dependency on the
// freshly minted CallId so the eventual reply (matched by CallId, not
// name — Open Question resolution, documented in DESIGN.md) can
// be routed back.
func (c *ExecCtx) CallRpc(path value.Path, args []value.Value, owner expr.ID) string {
	callID := strconv.FormatUint(c.nextCallID.Add(1), 10)
	c.lc.InsertRpc(callID, owner)
	if c.caller != nil {
		c.caller(path, args, callID)
	}
	return callID
}

// RegisterRef registers owner's dependency on path via a `ref` node
//, independent of any subscription.
func (c *ExecCtx) RegisterRef(path value.Path, owner expr.ID) {
	c.lc.InsertRef(path, owner)
}

// CurrentPublished returns path's currently published value, if the fabric
// has one. Used by `ref` to resolve its target eagerly at registration
// time instead of waiting on the next ref-update fanout.
func (c *ExecCtx) CurrentPublished(path value.Path) (value.Value, bool) {
	if c.pub == nil {
		return value.Value{}, false
	}
	return c.pub.Current(path)
}

// Clear drops every dependency owner has registered across all four
// reverse maps.
func (c *ExecCtx) Clear(owner expr.ID) {
	c.lc.Unref(owner)
}

// WriteCell queues an external write for the container to apply.
func (c *ExecCtx) WriteCell(path value.Path, v value.Value) {
	c.pendingWrites = append(c.pendingWrites, Write{Path: path, Value: v})
}

// DrainWrites returns and clears the queued writes. The container calls
// this once per tick after running the VM's update pass.
func (c *ExecCtx) DrainWrites() []Write {
	w := c.pendingWrites
	c.pendingWrites = nil
	return w
}

// DrainVars returns and clears the queued variable assignments.
func (c *ExecCtx) DrainVars() []VarWrite {
	w := c.pendingVars
	c.pendingVars = nil
	return w
}

// DeliverRpcReply posts an RPC reply as a vm.RpcEvent keyed by callID;
// the expressions awaiting that callID pick it up from the event.
// The container calls this from its RPC worker-task completion handler.
func (c *ExecCtx) DeliverRpcReply(callID string, v value.Value) {
	if c.postEvent != nil {
		c.postEvent(vm.RpcEvent(callID, v))
	}
}
