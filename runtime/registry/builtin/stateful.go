package builtin

import (
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/vm"
)

func init() {
	registry.Register("count", registry.Descriptor{Arity: registry.Fixed(1), Stateful: true, Doc: "increments when child updates"},
		vm.NodeFactory(countFactory))
	registry.Register("sample", registry.Descriptor{Arity: registry.Fixed(2), Stateful: true, Doc: "(trigger, source) latches source on trigger update"},
		vm.NodeFactory(sampleFactory))
	registry.Register("mean", registry.Descriptor{Arity: registry.AtLeast(1), Stateful: true, Doc: "running average; sums all children's current values per tick"},
		vm.NodeFactory(meanFactory))
	registry.Register("uniq", registry.Descriptor{Arity: registry.Fixed(1), Stateful: true, Doc: "suppresses equal consecutive updates"},
		vm.NodeFactory(uniqFactory))
	registry.Register("any", registry.Descriptor{Arity: registry.AtLeast(1), Stateful: true, Doc: "first child to update this tick wins; leftmost on ties"},
		vm.NodeFactory(anyFactory))
	registry.Register("all", registry.Descriptor{Arity: registry.AtLeast(1), Stateful: true, Doc: "current value if every child's current value is identical, else no value"},
		vm.NodeFactory(allFactory))
}

func countFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &countImpl{}, nil
}

// countImpl holds a running tally across ticks — the per-call state
// referenced by "init(ctx, children, expr_id) -> state".
type countImpl struct {
	n int64
}

func (c *countImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("count: expected 1 argument, got %d", len(children)), true
	}
	if _, ok := children[0].Current(); !ok {
		return value.Value{}, false
	}
	c.n++
	return value.I64(c.n), true
}

func (c *countImpl) Current([]*vm.Node) (value.Value, bool) {
	if c.n == 0 {
		return value.Value{}, false
	}
	return value.I64(c.n), true
}

func sampleFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &sampleImpl{}, nil
}

// sampleImpl latches the source's current value every time the trigger
// child (children[0]) produces a new value this tick.
type sampleImpl struct {
	latched value.Value
	has     bool
}

func (s *sampleImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 2 {
		return value.Errf("sample: expected 2 arguments, got %d", len(children)), true
	}
	trigger, triggerHas := children[0].Current()
	_ = trigger
	if !triggerHas {
		return s.Current(children)
	}
	src, ok := children[1].Current()
	if !ok {
		return s.Current(children)
	}
	s.latched, s.has = src, true
	return s.latched, true
}

func (s *sampleImpl) Current([]*vm.Node) (value.Value, bool) {
	if !s.has {
		return value.Value{}, false
	}
	return s.latched, true
}

func meanFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &meanImpl{}, nil
}

// meanImpl implements the running-average `mean` per the resolved Open
// Question: on each tick it sums across all children's current values
// (not just the ones that changed) and divides by the running count of
// ticks observed, rather than trying to track per-child history.
type meanImpl struct {
	sum   float64
	ticks int64
}

func (m *meanImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	total := 0.0
	any := false
	for _, c := range children {
		v, ok := c.Current()
		if !ok {
			continue
		}
		f, ok := v.AsFloat()
		if !ok {
			return value.Err("mean: non-numeric child"), true
		}
		total += f
		any = true
	}
	if !any {
		return m.Current(children)
	}
	m.sum += total
	m.ticks++
	return value.F64(m.sum / float64(m.ticks)), true
}

func (m *meanImpl) Current([]*vm.Node) (value.Value, bool) {
	if m.ticks == 0 {
		return value.Value{}, false
	}
	return value.F64(m.sum / float64(m.ticks)), true
}

func uniqFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &uniqImpl{}, nil
}

type uniqImpl struct {
	last value.Value
	has  bool
}

func (u *uniqImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) != 1 {
		return value.Errf("uniq: expected 1 argument, got %d", len(children)), true
	}
	v, ok := children[0].Current()
	if !ok {
		return value.Value{}, false
	}
	if u.has && value.Equal(u.last, v) {
		return value.Value{}, false
	}
	u.last, u.has = v, true
	return v, true
}

func (u *uniqImpl) Current([]*vm.Node) (value.Value, bool) {
	if !u.has {
		return value.Value{}, false
	}
	return u.last, true
}

func anyFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &anyImpl{
		prev: make([]value.Value, len(args)),
		has:  make([]bool, len(args)),
	}, nil
}

// anyImpl is `any`'s per-call state: since a child Node only exposes its
// memoized Current(), detecting "did this child
// produce a new value this tick" means anyImpl must keep its own snapshot
// of every child's last-seen value and diff against it, the same way
// uniqImpl diffs its single child.
type anyImpl struct {
	prev []value.Value
	has  []bool

	latched    value.Value
	latchedHas bool
}

func (a *anyImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	winner := -1
	var winnerVal value.Value
	for i, c := range children {
		v, ok := c.Current()
		if !ok {
			continue
		}
		changed := !a.has[i] || !value.Equal(a.prev[i], v)
		a.prev[i], a.has[i] = v, true
		if changed && winner == -1 {
			winner, winnerVal = i, v
		}
	}
	if winner == -1 {
		return value.Value{}, false
	}
	a.latched, a.latchedHas = winnerVal, true
	return a.latched, true
}

func (a *anyImpl) Current([]*vm.Node) (value.Value, bool) {
	if !a.latchedHas {
		return value.Value{}, false
	}
	return a.latched, true
}

func allFactory(ctx vm.Ctx, owner expr.ID, args []expr.ID) (vm.Impl, error) {
	return &allImpl{}, nil
}

// allImpl re-derives its result from every child's current value on each
// tick: if all children have a current value and they're all equal, that
// value; otherwise no value.
type allImpl struct {
	latched value.Value
	has     bool
}

func (a *allImpl) Update(ctx vm.Ctx, children []*vm.Node, ev vm.Event) (value.Value, bool) {
	if len(children) == 0 {
		return value.Err("all: expected at least 1 argument"), true
	}
	first, ok := children[0].Current()
	if !ok {
		a.has = false
		return value.Value{}, false
	}
	for _, c := range children[1:] {
		v, ok := c.Current()
		if !ok || !value.Equal(first, v) {
			a.has = false
			return value.Value{}, false
		}
	}
	a.latched, a.has = first, true
	return a.latched, true
}

func (a *allImpl) Current([]*vm.Node) (value.Value, bool) {
	if !a.has {
		return value.Value{}, false
	}
	return a.latched, true
}
