package builtin

import (
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("store", registry.Descriptor{Arity: registry.Fixed(2), Stateful: true, Doc: "(path, value) writes value to path on update"},
		vm.NodeFactory(storeFactory))
	registry.Register("store_var", registry.Descriptor{Arity: registry.Fixed(2), Stateful: true, Doc: "(name, value) assigns a variable on update"},
		vm.NodeFactory(storeVarFactory))
	registry.Register("load", registry.Descriptor{Arity: registry.Fixed(1), Stateful: true, Doc: "(path) subscribes and tracks updates"},
		vm.NodeFactory(loadFactory))
	registry.Register("load_var", registry.Descriptor{Arity: registry.Fixed(1), Stateful: true, Doc: "(name) reads and tracks a variable"},
		vm.NodeFactory(loadVarFactory))
	registry.Register("ref", registry.Descriptor{Arity: registry.Fixed(1), Stateful: true, Doc: "(path) follows another formula's output"},
		vm.NodeFactory(refFactory))
}

// storeImpl queues a write on every Update in which its value child
// (children[1]) has a current value, whether or not that value changed
// this tick, targeting whatever path its path child (children[0])
// currently names. A write whose path child has no current value yet is
// dropped rather than queued against an unknown target.
type storeImpl struct{}

func storeFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return storeImpl{}, nil
}

func (storeImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 2 {
		return value.Errf("store: expected 2 arguments, got %d", len(children)), true
	}
	pathV, ok := children[0].Current()
	if !ok {
		return value.Value{}, false
	}
	pathStr, ok := pathV.AsString()
	if !ok {
		return value.Err("store: first argument must be a path string"), true
	}
	v, ok := children[1].Current()
	if !ok {
		return value.Value{}, false
	}
	ctx.WriteCell(value.Path(pathStr), v)
	return v, true
}

func (storeImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 2 {
		return value.Value{}, false
	}
	return children[1].Current()
}

type storeVarImpl struct{}

func storeVarFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return storeVarImpl{}, nil
}

func (storeVarImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 2 {
		return value.Errf("store_var: expected 2 arguments, got %d", len(children)), true
	}
	nameV, ok := children[0].Current()
	if !ok {
		return value.Value{}, false
	}
	name, ok := nameV.AsString()
	if !ok {
		return value.Err("store_var: first argument must be a variable name"), true
	}
	v, ok := children[1].Current()
	if !ok {
		return value.Value{}, false
	}
	ctx.SetVar(name, v)
	return v, true
}

func (storeVarImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 2 {
		return value.Value{}, false
	}
	return children[1].Current()
}

// loadImpl subscribes lazily the first time it observes a path child
// value, then tracks netidx events for that subscription.
type loadImpl struct {
	owner     expr.ID
	sub       vm.SubID
	subscribed bool
	last      value.Value
	has       bool
}

func loadFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &loadImpl{owner: owner}, nil
}

func (l *loadImpl) ensureSubscribed(ctx vm.Ctx, children []*vm.Node) {
	if l.subscribed || len(children) != 1 {
		return
	}
	pathV, ok := children[0].Current()
	if !ok {
		return
	}
	pathStr, ok := pathV.AsString()
	if !ok {
		return
	}
	l.sub = ctx.DurableSubscribe(value.Path(pathStr), l.owner)
	l.subscribed = true
}

func (l *loadImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("load: expected 1 argument, got %d", len(children)), true
	}
	l.ensureSubscribed(ctx, children)
	if sub, v, ok := ev.IsNetidx(); ok && l.subscribed && sub == l.sub {
		l.last, l.has = v, true
		return v, true
	}
	return l.Current(children)
}

func (l *loadImpl) Current([]*vm.Node) (value.Value, bool) {
	if !l.has {
		return value.Value{}, false
	}
	return l.last, true
}

type loadVarImpl struct {
	owner expr.ID
	last  value.Value
	has   bool
	name  string
}

func loadVarFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &loadVarImpl{owner: owner}, nil
}

func (l *loadVarImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("load_var: expected 1 argument, got %d", len(children)), true
	}
	if nameV, ok := children[0].Current(); ok {
		if name, ok := nameV.AsString(); ok && name != l.name {
			l.name = name
			if v, ok := ctx.RefVar(name, l.owner); ok {
				l.last, l.has = v, true
			}
		}
	}
	if name, v, ok := ev.IsVariable(); ok && name == l.name {
		l.last, l.has = v, true
		return v, true
	}
	return l.Current(children)
}

func (l *loadVarImpl) Current([]*vm.Node) (value.Value, bool) {
	if !l.has {
		return value.Value{}, false
	}
	return l.last, true
}

// refImpl tracks another cell's published output via the `refs` reverse
// index rather than a live subscription: the container delivers changes
// as a vm.UserEvent(path, value) during update_refs. A ref resolves its
// target eagerly at registration time (ctx.CurrentPublished), falling
// back to Error("#REF") when the target isn't published yet — including
// both sides of a cyclic ref pair, which are each unresolved at the
// other's registration time.
type refImpl struct {
	owner      expr.ID
	registered bool
	path       value.Path
	last       value.Value
	has        bool
}

func refFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &refImpl{owner: owner}, nil
}

// ensureRegistered registers the ref's dependency on its current path
// argument, (re-)resolving immediately when the target path changes. It
// reports whether it just (re-)registered, so Update knows to surface the
// freshly resolved value this tick.
func (r *refImpl) ensureRegistered(ctx vm.Ctx, children []*vm.Node) bool {
	if len(children) != 1 {
		return false
	}
	pathV, ok := children[0].Current()
	if !ok {
		return false
	}
	pathStr, ok := pathV.AsString()
	if !ok {
		return false
	}
	p := value.Path(pathStr)
	if r.registered && p == r.path {
		return false
	}
	ctx.RegisterRef(p, r.owner)
	r.path, r.registered = p, true
	if v, ok := ctx.CurrentPublished(p); ok {
		r.last, r.has = v, true
	} else {
		r.last, r.has = value.Err("#REF"), true
	}
	return true
}

func (r *refImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("ref: expected 1 argument, got %d", len(children)), true
	}
	justRegistered := r.ensureRegistered(ctx, children)
	if path, v, ok := ev.IsUser(); ok && r.registered && path == r.path {
		r.last, r.has = v, true
		return v, true
	}
	if justRegistered {
		return r.last, true
	}
	return r.Current(children)
}

func (r *refImpl) Current([]*vm.Node) (value.Value, bool) {
	if !r.has {
		return value.Value{}, false
	}
	return r.last, true
}
