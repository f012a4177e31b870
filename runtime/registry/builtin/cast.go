package builtin

import (
	"strconv"
	"strings"

	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("cast", registry.Descriptor{Arity: registry.Fixed(2), Doc: "(typ, src) -> coerced Value"},
		vm.NodeFactory(castFactory))
	registry.Register("isa", registry.Descriptor{Arity: registry.Fixed(2), Doc: "(typ, src) -> Bool tag test"},
		vm.NodeFactory(isaFactory))
	registry.Register("string_join", registry.Descriptor{Arity: registry.AtLeast(1), Doc: "(sep, parts...) -> joined String"},
		vm.NodeFactory(stringJoinFactory))
	registry.Register("string_concat", registry.Descriptor{Arity: registry.AtLeast(0), Doc: "concatenates children with no separator"},
		vm.NodeFactory(stringConcatFactory))
}

func castFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return castImpl{}, nil
}

type castImpl struct{}

func (castImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return castImpl{}.Current(children)
}

func (castImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 2 {
		return value.Errf("cast: expected 2 arguments, got %d", len(children)), true
	}
	typV, ok0 := children[0].Current()
	src, ok1 := children[1].Current()
	if !ok0 || !ok1 {
		return value.Value{}, false
	}
	typ, ok := typV.AsString()
	if !ok {
		return value.Err("cast: first argument must name a type"), true
	}
	return coerce(typ, src), true
}

func coerce(typ string, v value.Value) value.Value {
	switch typ {
	case "i64":
		if i, ok := v.AsInt(); ok {
			return value.I64(i)
		}
		if f, ok := v.AsFloat(); ok {
			return value.I64(int64(f))
		}
	case "u32":
		if i, ok := v.AsInt(); ok {
			return value.U32(uint32(i))
		}
	case "f64":
		if f, ok := v.AsFloat(); ok {
			return value.F64(f)
		}
	case "string":
		return value.String(v.String())
	case "bool":
		switch v.Kind() {
		case value.KindBool:
			b, _ := v.AsBool()
			return value.Bool(b)
		case value.KindString:
			s, _ := v.AsString()
			b, err := strconv.ParseBool(s)
			if err == nil {
				return value.Bool(b)
			}
		}
	}
	return value.Errf("cast: cannot coerce %s to %s", v.Kind(), typ)
}

func isaFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return isaImpl{}, nil
}

type isaImpl struct{}

func (isaImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return isaImpl{}.Current(children)
}

func (isaImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) != 2 {
		return value.Errf("isa: expected 2 arguments, got %d", len(children)), true
	}
	typV, ok0 := children[0].Current()
	src, ok1 := children[1].Current()
	if !ok0 || !ok1 {
		return value.Value{}, false
	}
	typ, ok := typV.AsString()
	if !ok {
		return value.Err("isa: first argument must name a type"), true
	}
	return value.Bool(typ == src.Kind().String()), true
}

func stringJoinFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return stringJoinImpl{}, nil
}

type stringJoinImpl struct{}

func (stringJoinImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return stringJoinImpl{}.Current(children)
}

func (stringJoinImpl) Current(children []*vm.Node) (value.Value, bool) {
	if len(children) < 1 {
		return value.Err("string_join: expected at least 1 argument (separator)"), true
	}
	sepV, ok := children[0].Current()
	if !ok {
		return value.Value{}, false
	}
	sep, ok := sepV.AsString()
	if !ok {
		return value.Err("string_join: separator must be a string"), true
	}
	var parts []string
	for _, c := range children[1:] {
		v, ok := c.Current()
		if !ok {
			return value.Value{}, false
		}
		parts = append(parts, v.String())
	}
	return value.String(strings.Join(parts, sep)), true
}

func stringConcatFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return stringConcatImpl{}, nil
}

type stringConcatImpl struct{}

func (stringConcatImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	return stringConcatImpl{}.Current(children)
}

func (stringConcatImpl) Current(children []*vm.Node) (value.Value, bool) {
	var b strings.Builder
	for _, c := range children {
		v, ok := c.Current()
		if !ok {
			continue
		}
		b.WriteString(v.String())
	}
	return value.String(b.String()), true
}
