package builtin

import (
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("call", registry.Descriptor{Arity: registry.AtLeast(1), Stateful: true, Doc: "(rpc_path, name1, val1, ...) calls an RPC and surfaces the reply"},
		vm.NodeFactory(callFactory))
}

// callImpl fires a fresh RPC whenever its path or named-argument children
// produce a new current value, and surfaces the reply matched by CallId
// — never by path/name, since a stale reply could otherwise be
// misrouted after a name change.
type callImpl struct {
	owner      expr.ID
	pendingID  string
	hasPending bool
	last       value.Value
	has        bool
}

func callFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	if len(args) < 1 || (len(args)-1)%2 != 0 {
		return nil, &arityError{name: "call", got: len(args)}
	}
	return &callImpl{owner: owner}, nil
}

type arityError struct {
	name string
	got  int
}

func (e *arityError) Error() string {
	return "call: expected 1 + 2k arguments, got a shape that does not match"
}

func (c *callImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if callID, v, ok := ev.IsRpc(); ok && c.hasPending && callID == c.pendingID {
		c.last, c.has = v, true
		c.hasPending = false
		return v, true
	}

	pathV, ok := children[0].Current()
	if !ok {
		return c.Current(children)
	}
	pathStr, ok := pathV.AsString()
	if !ok {
		return value.Err("call: first argument must be an rpc path"), true
	}

	argVals := make([]value.Value, 0, len(children)-1)
	for _, ch := range children[1:] {
		v, ok := ch.Current()
		if !ok {
			return c.Current(children)
		}
		argVals = append(argVals, v)
	}

	c.pendingID = ctx.CallRpc(value.Path(pathStr), argVals, c.owner)
	c.hasPending = true
	return c.Current(children)
}

func (c *callImpl) Current([]*vm.Node) (value.Value, bool) {
	if !c.has {
		return value.Value{}, false
	}
	return c.last, true
}
