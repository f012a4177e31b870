package builtin

import (
	"github.com/bscript/container/core/errorsx"
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("and", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "short-circuits on first False"},
		vm.NodeFactory(boolFoldFactory(false)))
	registry.Register("or", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "short-circuits on first True"},
		vm.NodeFactory(boolFoldFactory(true)))
	registry.Register("not", registry.Descriptor{Arity: registry.Fixed(1), Doc: "logical negation"},
		vm.NodeFactory(notFactory))
	registry.Register("cmp", registry.Descriptor{Arity: registry.Fixed(3), Doc: "(op, a, b) typed comparison"},
		vm.NodeFactory(cmpFactory))
	registry.Register("if", registry.Descriptor{Arity: registry.Arity{Min: 2, Max: 3}, Doc: "(pred, then[, else])"},
		vm.NodeFactory(ifFactory))
	registry.Register("filter", registry.Descriptor{Arity: registry.Fixed(2), Doc: "(pred, src) -> src when pred=True"},
		vm.NodeFactory(filterFactory))
}

// boolFoldFactory builds `and` (shortOn=false) / `or` (shortOn=true): the
// fold short-circuits as soon as a child's current value is the
// short-circuiting literal, else the result is the opposite literal once
// all children are known — the result is always True or False, never
// an error.
func boolFoldFactory(shortOn bool) vm.NodeFactory {
	return func(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
		return boolFoldImpl{shortOn: shortOn}, nil
	}
}

type boolFoldImpl struct{ shortOn bool }

func (b boolFoldImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return b.Current(children)
}

func (b boolFoldImpl) Current(children []*vm.Node) (value.Value, bool) {
	for _, c := range children {
		v, ok := c.Current()
		if !ok {
			continue
		}
		bv, ok := v.AsBool()
		if ok && bv == b.shortOn {
			return value.Bool(b.shortOn), true
		}
	}
	return value.Bool(!b.shortOn), true
}

func notFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return notImpl{}, nil
}

type notImpl struct{}

func (notImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return notImpl{}.Current(children)
}

func (notImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("not: expected 1 argument, got %d", len(children)), true
	}
	v, ok := children[0].Current()
	if !ok {
		return value.Value{}, false
	}
	b, ok := v.AsBool()
	if !ok {
		return value.Err("not: argument is not a bool"), true
	}
	return value.Bool(!b), true
}

func cmpFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return cmpImpl{}, nil
}

type cmpImpl struct{}

func (cmpImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return cmpImpl{}.Current(children)
}

func (cmpImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 3 {
		return value.Errf("cmp: expected 3 arguments, got %d", len(children)), true
	}
	opV, ok0 := children[0].Current()
	a, ok1 := children[1].Current()
	b, ok2 := children[2].Current()
	if !ok0 || !ok1 || !ok2 {
		return value.Value{}, false
	}
	op, ok := opV.AsString()
	if !ok {
		return value.Err("cmp: first argument must be a string operator"), true
	}
	return value.Cmp(op, a, b), true
}

func ifFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return ifImpl{}, nil
}

type ifImpl struct{}

func (ifImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return ifImpl{}.Current(children)
}

func (ifImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 2 && len(children) != 3 {
		return value.Errf("if: expected 2 or 3 arguments, got %d", len(children)), true
	}
	pred, ok := children[0].Current()
	if !ok {
		// predicate has produced no value yet: None predicate -> None
		// (propagates absence, not Error)
		return value.Value{}, false
	}
	b, ok := pred.AsBool()
	if !ok {
		return value.Errf("if: %s", errorsx.New(errorsx.KindType, "predicate is not a bool").Error()), true
	}
	if b {
		return children[1].Current()
	}
	if len(children) == 3 {
		return children[2].Current()
	}
	return value.Value{}, false
}

func filterFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return filterImpl{}, nil
}

type filterImpl struct{}

func (filterImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return filterImpl{}.Current(children)
}

func (filterImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 2 {
		return value.Errf("filter: expected 2 arguments, got %d", len(children)), true
	}
	pred, ok := children[0].Current()
	if !ok {
		return value.Value{}, false
	}
	b, ok := pred.AsBool()
	if !ok || !b {
		return value.Value{}, false
	}
	return children[1].Current()
}
