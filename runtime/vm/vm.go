// Package vm implements the compiled counterpart of core/expr's
// Expression tree: a Node holds a reference to
// its function's per-call state, its child Nodes, its owning ExprId, and a
// memoized current value, and reacts to Events propagated bottom-up by the
// container.
package vm

import (
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/invariant"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
)

// SubID re-exports the subscription identity used in Event so callers of
// this package never need to import core/depindex just to build an Event.
type SubID uint64

// Event is one of the four event shapes a Node reacts to.
type Event struct {
	kind eventKind

	subID SubID
	name  string
	// callID is declared as string rather than a dedicated type: RPC call
	// identity is opaque to the VM and only needs equality, per 's
	// Open Question resolution that replies are matched by CallId, not by
	// the RPC's target path.
	callID string
	path   value.Path

	value value.Value
}

type eventKind int

const (
	eventNetidx eventKind = iota
	eventVariable
	eventRpc
	eventUser
	eventInit
)

// InitEvent is delivered once to every Apply node immediately after
// compile, so stateful functions (eval, count, sample, ...) can seed
// their current value from already-known children without waiting for a
// live external event. It matches none of the IsNetidx/IsVariable/IsRpc/
// IsUser predicates.
func InitEvent() Event { return Event{kind: eventInit} }

func NetidxEvent(sub SubID, v value.Value) Event {
	return Event{kind: eventNetidx, subID: sub, value: v}
}

func VariableEvent(name string, v value.Value) Event {
	return Event{kind: eventVariable, name: name, value: v}
}

func RpcEvent(callID string, v value.Value) Event {
	return Event{kind: eventRpc, callID: callID, value: v}
}

// UserEvent carries the container's own (Path, Value) ref-update payload
//` variant specialized to the container).
func UserEvent(path value.Path, v value.Value) Event {
	return Event{kind: eventUser, path: path, value: v}
}

func (e Event) IsNetidx() (SubID, value.Value, bool) {
	if e.kind != eventNetidx {
		return 0, value.Value{}, false
	}
	return e.subID, e.value, true
}

func (e Event) IsVariable() (string, value.Value, bool) {
	if e.kind != eventVariable {
		return "", value.Value{}, false
	}
	return e.name, e.value, true
}

func (e Event) IsRpc() (string, value.Value, bool) {
	if e.kind != eventRpc {
		return "", value.Value{}, false
	}
	return e.callID, e.value, true
}

func (e Event) IsUser() (value.Path, value.Value, bool) {
	if e.kind != eventUser {
		return "", value.Value{}, false
	}
	return e.path, e.value, true
}

// Impl is the per-call behavior a registered function supplies: Update
// reacts to one Event and returns the node's current value, with ok=true
// when the node has a value to propagate this tick. Stateless functions
// report ok=true whenever they can compute a value, whether or not it
// differs from the previous one; among the builtins only `uniq` and `any`
// report ok=false for an unchanged result. Current returns the
// memoized value without processing an event, used when a parent needs a
// child's value but the child itself did not change this tick.
type Impl interface {
	// Update processes ev, possibly touching child state, and reports the
	// node's (possibly unchanged) current value.
	Update(ctx Ctx, children []*Node, ev Event) (value.Value, bool)
	// Current returns the memoized current value without side effects.
	Current(children []*Node) (value.Value, bool)
}

// Ctx is the subset of ExecCtx that function Impls are
// allowed to call. It is declared here, not imported from runtime/execctx,
// to avoid a package cycle: execctx.ExecCtx implements this interface.
type Ctx interface {
	DurableSubscribe(path value.Path, owner expr.ID) SubID
	RefVar(name string, owner expr.ID) (value.Value, bool)
	SetVar(name string, v value.Value)
	CallRpc(path value.Path, args []value.Value, owner expr.ID) string
	RegisterRef(path value.Path, owner expr.ID)
	// CurrentPublished returns path's currently published value, if any.
	CurrentPublished(path value.Path) (value.Value, bool)
	Clear(owner expr.ID)
	// WriteCell queues an external write to path — used by `store`. The
	// write may be queued until the target row's binding is established.
	WriteCell(path value.Path, v value.Value)
}

// NodeFactory builds the Impl for one Apply site during compile.
type NodeFactory func(ctx Ctx, owner expr.ID, args []expr.ID) (Impl, error)

// Node is the compiled counterpart of an Expression.
type Node struct {
	id       expr.ID
	impl     Impl
	children []*Node
	current  value.Value
	hasValue bool
}

// ExprID returns the owning expression id.
func (n *Node) ExprID() expr.ID { return n.id }

// Current returns the node's memoized value, if any.
func (n *Node) Current() (value.Value, bool) {
	if n.hasValue {
		return n.current, true
	}
	return value.Value{}, false
}

// Children returns the node's compiled child nodes.
func (n *Node) Children() []*Node { return n.children }

// Compile walks e bottom-up, compiling every child before looking up and
// invoking e's own registered NodeFactory to build its Impl.
func Compile(ctx Ctx, reg *registry.Registry, e expr.Expression) (*Node, error) {
	switch n := e.(type) {
	case *expr.Constant:
		return &Node{id: n.ID, impl: constantImpl{n.Value}, current: n.Value, hasValue: true}, nil
	case *expr.Apply:
		children := make([]*Node, len(n.Args))
		childIDs := make([]expr.ID, len(n.Args))
		for i, arg := range n.Args {
			child, err := Compile(ctx, reg, arg)
			if err != nil {
				return nil, err
			}
			children[i] = child
			childIDs[i] = arg.ExprID()
		}
		_, factoryAny, ok := reg.Lookup(n.Function)
		if !ok {
			return nil, unknownFunctionErr(n.Function)
		}
		factory, ok := factoryAny.(NodeFactory)
		invariant.Invariant(ok, "vm: registry entry %q is not a vm.NodeFactory", n.Function)
		impl, err := factory(ctx, n.ID, childIDs)
		if err != nil {
			return nil, err
		}
		node := &Node{id: n.ID, impl: impl, children: children}
		if v, ok := impl.Update(ctx, children, InitEvent()); ok {
			node.current, node.hasValue = v, true
		}
		return node, nil
	default:
		invariant.Invariant(false, "vm: unknown expression type %T", e)
		return nil, nil
	}
}

// Update delivers ev to n, first recursing into every child so children
// are always updated before parents, then invoking n's own Impl against
// the (possibly refreshed) children. It returns (v, true) when n's Impl
// reported a value this tick, which may equal the previous value (see
// Impl) — callers use this to decide whether to keep propagating upward.
func (n *Node) Update(ctx Ctx, ev Event) (value.Value, bool) {
	for _, child := range n.children {
		child.Update(ctx, ev)
	}
	v, changed := n.impl.Update(ctx, n.children, ev)
	if changed {
		n.current, n.hasValue = v, true
	}
	return v, changed
}

type constantImpl struct{ v value.Value }

func (c constantImpl) Update(Ctx, []*Node, Event) (value.Value, bool) { return value.Value{}, false }
func (c constantImpl) Current([]*Node) (value.Value, bool)            { return c.v, true }

func unknownFunctionErr(name string) error {
	return &CompileError{Function: name}
}

// CompileError is returned by Compile when an Apply names an unregistered
// function.
type CompileError struct {
	Function string
}

func (e *CompileError) Error() string {
	return "vm: unregistered function " + e.Function
}
