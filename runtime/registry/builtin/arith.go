// Package builtin registers the baseline function set 
// Each file groups one family and registers its members from its own
// init(), mirroring the database/sql driver registration pattern.
package builtin

import (
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("sum", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "folds children with Add, left to right"},
		vm.NodeFactory(foldFactory(value.Add, "sum")))
	registry.Register("product", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "folds children with Mul, left to right"},
		vm.NodeFactory(foldFactory(value.Mul, "product")))
	registry.Register("divide", registry.Descriptor{Arity: registry.AtLeast(1), Doc: "folds children with Div, left to right"},
		vm.NodeFactory(foldFactory(value.Div, "divide")))
	registry.Register("min", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "smallest comparable child"},
		vm.NodeFactory(extremumFactory(true)))
	registry.Register("max", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "largest comparable child"},
		vm.NodeFactory(extremumFactory(false)))
}

// foldFactory builds a stateless Impl that folds all children's current
// values through op, left to right, skipping children with no current
// value (None operands are skipped).
func foldFactory(op func(a, b value.Value) value.Value, name string) vm.NodeFactory {
	return func(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
		return foldImpl{op: op, name: name}, nil
	}
}

type foldImpl struct {
	op   func(a, b value.Value) value.Value
	name string
}

func (f foldImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return f.Current(children)
}

func (f foldImpl) Current(children []*vm.Node) (value.Value, bool) {
	var acc value.Value
	has := false
	for _, c := range children {
		v, ok := c.Current()
		if !ok {
			continue
		}
		if !has {
			acc, has = v, true
			continue
		}
		acc = f.op(acc, v)
	}
	if !has {
		return value.Value{}, false
	}
	return acc, true
}

func extremumFactory(wantMin bool) vm.NodeFactory {
	return func(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
		return extremumImpl{wantMin: wantMin}, nil
	}
}

type extremumImpl struct{ wantMin bool }

func (e extremumImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return e.Current(children)
}

func (e extremumImpl) Current(children []*vm.Node) (value.Value, bool) {
	var best value.Value
	has := false
	for _, c := range children {
		v, ok := c.Current()
		if !ok {
			continue
		}
		if !has {
			best, has = v, true
			continue
		}
		lt, ok := value.Less(v, best)
		if !ok {
			continue
		}
		if (e.wantMin && lt) || (!e.wantMin && !lt && !value.Equal(v, best)) {
			best = v
		}
	}
	if !has {
		return value.Value{}, false
	}
	return best, true
}
