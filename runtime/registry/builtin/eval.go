package builtin

import (
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("eval", registry.Descriptor{Arity: registry.Fixed(1), Stateful: true, Doc: "compiles its argument as formula source into a live subnode"},
		vm.NodeFactory(evalFactory))
}

// evalImpl recompiles its subnode whenever the source string child
// produces a new value. A parse failure publishes Error("eval: ...") but
// leaves evalImpl ready to accept the next source value.
type evalImpl struct {
	owner  expr.ID
	ctx    vm.Ctx
	src    string
	has    bool
	sub    *vm.Node
	result value.Value
	resOK  bool
}

func evalFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &evalImpl{owner: owner, ctx: ctx}, nil
}

func (e *evalImpl) recompile(srcStr string) {
	e.src, e.has = srcStr, true
	parsed, err := expr.Parse(srcStr, registry.Global().Names())
	if err != nil {
		e.sub = nil
		e.result, e.resOK = value.Errf("eval: %v", err), true
		return
	}
	node, err := vm.Compile(e.ctx, registry.Global(), parsed)
	if err != nil {
		e.sub = nil
		e.result, e.resOK = value.Errf("eval: %v", err), true
		return
	}
	e.sub = node
	if v, ok := node.Current(); ok {
		e.result, e.resOK = v, true
	} else {
		e.resOK = false
	}
}

func (e *evalImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("eval: expected 1 argument, got %d", len(children)), true
	}
	if srcV, ok := children[0].Current(); ok {
		if s, ok := srcV.AsString(); ok && (!e.has || s != e.src) {
			e.recompile(s)
			return e.Current(children)
		}
	}
	if e.sub != nil {
		if v, changed := e.sub.Update(ctx, ev); changed {
			e.result, e.resOK = v, true
			return v, true
		}
	}
	return e.Current(children)
}

func (e *evalImpl) Current([]*vm.Node) (value.Value, bool) {
	if !e.resOK {
		return value.Value{}, false
	}
	return e.result, true
}
