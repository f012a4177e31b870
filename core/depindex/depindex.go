// Package depindex implements Lc, the container's dependency index.
// It owns four reverse maps — from
// variable name, subscription id, rpc path, and ref path to the set of
// expression ids that currently depend on them — plus a forward_refs
// mirror keyed by expression id, so an expression can be unref'd in one
// call without walking its tree again.
package depindex

import (
	"fmt"

	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/invariant"
	"github.com/bscript/container/core/value"
)

// SubID identifies a live subscription handle.
type SubID uint64

// forwardRefs mirrors, for one expression, every key it has registered in
// each reverse map — the data needed to unref it in a single pass.
type forwardRefs struct {
	vars []string
	subs []SubID
	rpcs []string
	refs []value.Path
}

// Lc is the dependency index. All four reverse maps and the forward_refs
// mirror are private and mutated only through Insert/Unref, so the
// reverse ↔ forward_refs sync invariant cannot be broken from
// outside this package.
type Lc struct {
	varIdx map[string]map[expr.ID]struct{}
	subIdx map[SubID]map[expr.ID]struct{}
	rpcIdx map[string]map[expr.ID]struct{}
	refIdx map[value.Path]map[expr.ID]struct{}

	forward map[expr.ID]*forwardRefs
}

// New builds an empty dependency index.
func New() *Lc {
	return &Lc{
		varIdx:  make(map[string]map[expr.ID]struct{}),
		subIdx:  make(map[SubID]map[expr.ID]struct{}),
		rpcIdx:  make(map[string]map[expr.ID]struct{}),
		refIdx:  make(map[value.Path]map[expr.ID]struct{}),
		forward: make(map[expr.ID]*forwardRefs),
	}
}

func (lc *Lc) fwd(id expr.ID) *forwardRefs {
	f, ok := lc.forward[id]
	if !ok {
		f = &forwardRefs{}
		lc.forward[id] = f
	}
	return f
}

// InsertVar registers that id currently depends on variable name.
func (lc *Lc) InsertVar(name string, id expr.ID) {
	insert(lc.varIdx, name, id)
	f := lc.fwd(id)
	f.vars = appendUnique(f.vars, name)
}

// InsertSub registers that id currently depends on subscription sub.
func (lc *Lc) InsertSub(sub SubID, id expr.ID) {
	insert(lc.subIdx, sub, id)
	f := lc.fwd(id)
	f.subs = appendUniqueSub(f.subs, sub)
}

// InsertRpc registers that id currently awaits the reply to an outstanding
// RPC call identified by its opaque CallId — never by target path or
// procedure name, so a stale reply cannot be misrouted after the path is
// rebound to a different call.
func (lc *Lc) InsertRpc(callID string, id expr.ID) {
	insert(lc.rpcIdx, callID, id)
	f := lc.fwd(id)
	f.rpcs = appendUnique(f.rpcs, callID)
}

// InsertRef registers that id currently depends on the cell at path via a
// `ref` node.
func (lc *Lc) InsertRef(path value.Path, id expr.ID) {
	insert(lc.refIdx, path, id)
	f := lc.fwd(id)
	f.refs = appendUniquePath(f.refs, path)
}

// Unref removes every reverse-index entry id has accumulated and drops its
// forward_refs mirror entry. It is a no-op if id was never inserted.
func (lc *Lc) Unref(id expr.ID) {
	f, ok := lc.forward[id]
	if !ok {
		return
	}
	for _, name := range f.vars {
		remove(lc.varIdx, name, id)
	}
	for _, sub := range f.subs {
		remove(lc.subIdx, sub, id)
	}
	for _, callID := range f.rpcs {
		remove(lc.rpcIdx, callID, id)
	}
	for _, path := range f.refs {
		remove(lc.refIdx, path, id)
	}
	delete(lc.forward, id)
}

// ExprsForVar returns the expression ids currently depending on name.
func (lc *Lc) ExprsForVar(name string) []expr.ID { return keysOf(lc.varIdx[name]) }

// ExprsForSub returns the expression ids currently depending on sub.
func (lc *Lc) ExprsForSub(sub SubID) []expr.ID { return keysOf(lc.subIdx[sub]) }

// ExprsForRpc returns the expression ids awaiting the reply to callID.
func (lc *Lc) ExprsForRpc(callID string) []expr.ID { return keysOf(lc.rpcIdx[callID]) }

// ExprsForRef returns the expression ids referencing path via `ref`.
func (lc *Lc) ExprsForRef(path value.Path) []expr.ID { return keysOf(lc.refIdx[path]) }

// CheckSync validates the reverse ↔ forward_refs invariant for the
// variable bucket only: every (name, id) in the variable reverse map has a
// matching entry in forward_refs[id], and vice versa. The subscription,
// RPC and ref buckets are not checked. Intended for use in tests and
// debug-build assertions, not the hot path.
func (lc *Lc) CheckSync() {
	for name, ids := range lc.varIdx {
		for id := range ids {
			f := lc.forward[id]
			invariant.NotNil(f, fmt.Sprintf("depindex: var entry %q/%d forward_refs", name, id))
			invariant.Invariant(containsString(f.vars, name), "depindex: forward_refs[%d] missing var %q", id, name)
		}
	}
	for id, f := range lc.forward {
		for _, name := range f.vars {
			invariant.Invariant(hasExpr(lc.varIdx[name], id), "depindex: reverse var map missing %q for %d", name, id)
		}
	}
}

func insert[K comparable](m map[K]map[expr.ID]struct{}, key K, id expr.ID) {
	set, ok := m[key]
	if !ok {
		set = make(map[expr.ID]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func remove[K comparable](m map[K]map[expr.ID]struct{}, key K, id expr.ID) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}

func keysOf(set map[expr.ID]struct{}) []expr.ID {
	if len(set) == 0 {
		return nil
	}
	ids := make([]expr.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func hasExpr(set map[expr.ID]struct{}, id expr.ID) bool {
	_, ok := set[id]
	return ok
}

func containsString(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

func appendUnique(xs []string, x string) []string {
	if containsString(xs, x) {
		return xs
	}
	return append(xs, x)
}

func appendUniqueSub(xs []SubID, x SubID) []SubID {
	for _, s := range xs {
		if s == x {
			return xs
		}
	}
	return append(xs, x)
}

func appendUniquePath(xs []value.Path, x value.Path) []value.Path {
	for _, p := range xs {
		if p == x {
			return xs
		}
	}
	return append(xs, x)
}
