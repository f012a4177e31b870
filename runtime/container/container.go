// Package container implements the engine that binds the VM to a
// persistent key/value store: formulas compile into VM
// nodes and republish, on-write handlers fire on subscriber writes, and a
// dependency index propagates changes to fixpoint.
package container

import (
	"fmt"
	"sync"

	"github.com/bscript/container/core/depindex"
	"github.com/bscript/container/core/errorsx"
	"github.com/bscript/container/core/expr"
	"github.com/bscript/container/core/invariant"
	"github.com/bscript/container/core/registry"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/execctx"
	"github.com/bscript/container/runtime/pubsub"
	"github.com/bscript/container/runtime/rpcapi"
	"github.com/bscript/container/runtime/store"
	"github.com/bscript/container/runtime/vm"
)

// updateRefsBound is the fixpoint iteration bound: refresh repeats up to
// 10 times before giving up.
const updateRefsBound = 10

const (
	formulaSuffix = "/.formula"
	onWriteSuffix = "/.on-write"
)

type entryKind int

const (
	entryFormula entryKind = iota
	entryOnWrite
)

// compiledEntry is one row's compiled state: `compiled: ExprId -> {Formula
// {node, data_id} | OnWrite(node)}` from State list.
type compiledEntry struct {
	kind   entryKind
	node   *vm.Node
	dataID value.Path // the path this entry's output republishes under
}

// fifo is the shared record a published row's by_id/by_path entries point
// at step 4 — it keeps both the formula and on-write
// ExprIds alive together so either can be looked up from the other.
type fifo struct {
	path       value.Path
	formulaID  expr.ID
	onWriteID  expr.ID
	hasOnWrite bool
}

// Container is the engine. Every exported method except Shutdown and
// IsWithinBase locks mu for its duration: describes a single-threaded cooperative container
// task, but RPC replies arrive asynchronously from a worker task's own
// goroutine (runtime/container/rpc_dispatch.go), so mu is the concrete
// realization of that single-task model under Go's concurrency.
type Container struct {
	mu sync.Mutex

	basePath value.Path
	locked   map[value.Path]struct{}
	ctx      *execctx.ExecCtx
	reg      *registry.Registry

	db  store.DB
	pub pubsub.Publisher
	sub pubsub.Subscriber

	compiled map[expr.ID]compiledEntry
	byPath   map[value.Path]*fifo

	refUpdates []refUpdate
	varUpdates []varUpdate

	rpcDispatcher *rpcDispatcher
}

type refUpdate struct {
	path value.Path
	v    value.Value
}

type varUpdate struct {
	name string
	v    value.Value
}

// New builds a Container rooted at basePath. transport performs the
// actual RPC call for `call` nodes; it may be nil (e.g. in tests that
// never invoke `call`), in which case outstanding calls never reply.
func New(basePath value.Path, db store.DB, pub pubsub.Publisher, sub pubsub.Subscriber, transport RpcTransport) *Container {
	lc := depindex.New()
	c := &Container{
		basePath:      basePath,
		locked:        make(map[value.Path]struct{}),
		reg:           registry.Global(),
		db:            db,
		pub:           pub,
		sub:           sub,
		compiled:      make(map[expr.ID]compiledEntry),
		byPath:        make(map[value.Path]*fifo),
		rpcDispatcher: newRpcDispatcher(),
	}
	caller := func(path value.Path, args []value.Value, callID string) {
		c.rpcDispatcher.Dispatch(path, callID, args)
	}
	c.ctx = execctx.New(lc, sub, pub, caller, c.postEvent)
	c.rpcDispatcher.Start(transport, c.ctx.DeliverRpcReply)
	return c
}

// Shutdown stops the RPC dispatcher's background GC sweep and worker
// tasks. Safe to call more than once.
func (c *Container) Shutdown() {
	c.rpcDispatcher.Stop()
}

// postEvent is ExecCtx's callback for subscription updates and RPC
// replies; it routes them straight into the same dispatch path as an
// external event.
func (c *Container) postEvent(ev vm.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, _, ok := ev.IsNetidx(); ok {
		c.dispatch(c.ctx.Lc().ExprsForSub(depindex.SubID(sub)), ev)
		return
	}
	if callID, _, ok := ev.IsRpc(); ok {
		c.dispatch(c.ctx.Lc().ExprsForRpc(callID), ev)
	}
}

// Initialize loads the locked set and every row from db, advertising Data
// rows and compiling Formula rows.
func (c *Container) Initialize(sparse bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.db.Locked() {
		c.locked[p] = struct{}{}
	}
	for _, path := range c.db.Iter() {
		datum, ok := c.db.Lookup(path)
		if !ok {
			continue
		}
		if datum.IsData {
			if !sparse {
				if err := c.pub.Publish(path, datum.Data); err != nil {
					return err
				}
			}
			continue
		}
		if err := c.publishFormulaLocked(path, datum.FormulaSrc, datum.OnWriteSrc); err != nil {
			return err
		}
	}
	// Rows were loaded by direct iteration, not through the change-log;
	// discard anything SetFormula/SetData calls made before Initialize ran
	// so the first real ProcessUpdate starts from a clean log.
	c.db.Finish()
	return nil
}

// IsWithinBase reports whether path is a descendant of (or equal to) the
// container's base_path "All paths are rejected unless
// they are descendants of base_path".
func (c *Container) IsWithinBase(path value.Path) bool {
	return value.IsParent(c.basePath, path)
}

// PublishFormula compiles fSrc/wSrc into Nodes, publishes the three rows
// a formula occupies, and seeds the dependency fixpoint.
func (c *Container) PublishFormula(path value.Path, fSrc, wSrc string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publishFormulaLocked(path, fSrc, wSrc)
}

func (c *Container) publishFormulaLocked(path value.Path, fSrc, wSrc string) error {
	if old, ok := c.byPath[path]; ok {
		c.teardown(old)
	}

	node, parseErr := c.compileSource(fSrc)
	var dataVal value.Value
	switch {
	case parseErr != nil:
		dataVal = value.Errf("parse: %v", parseErr)
	case node != nil:
		if v, ok := node.Current(); ok {
			dataVal = v
		} else {
			dataVal = value.Null()
		}
	default:
		dataVal = value.Null()
	}

	f := &fifo{path: path}
	if node != nil {
		f.formulaID = node.ExprID()
		c.compiled[node.ExprID()] = compiledEntry{kind: entryFormula, node: node, dataID: path}
	}

	var onWriteNode *vm.Node
	if wSrc != "" {
		var owErr error
		onWriteNode, owErr = c.compileSource(wSrc)
		if owErr == nil && onWriteNode != nil {
			f.onWriteID, f.hasOnWrite = onWriteNode.ExprID(), true
			c.compiled[onWriteNode.ExprID()] = compiledEntry{kind: entryOnWrite, node: onWriteNode, dataID: path}
		}
	}
	c.byPath[path] = f

	if err := c.pub.Publish(path, dataVal); err != nil {
		return err
	}
	if err := c.pub.Publish(value.Path(string(path)+formulaSuffix), value.String(fSrc)); err != nil {
		return err
	}
	if err := c.pub.Publish(value.Path(string(path)+onWriteSuffix), value.String(wSrc)); err != nil {
		return err
	}

	c.refUpdates = append(c.refUpdates,
		refUpdate{path: path, v: dataVal},
		refUpdate{path: value.Path(string(path) + formulaSuffix), v: value.String(fSrc)},
		refUpdate{path: value.Path(string(path) + onWriteSuffix), v: value.String(wSrc)},
	)
	return c.updateRefsLocked()
}

func (c *Container) compileSource(src string) (*vm.Node, error) {
	if src == "" {
		return nil, nil
	}
	parsed, err := expr.Parse(src, c.reg.Names())
	if err != nil {
		return nil, err
	}
	return vm.Compile(c.ctx, c.reg, parsed)
}

// teardown removes a previously published formula's compiled entries and
// their reverse-index footprint before a fresh publish_formula replaces
// them.
func (c *Container) teardown(f *fifo) {
	if f.formulaID != 0 {
		c.ctx.Lc().Unref(f.formulaID)
		delete(c.compiled, f.formulaID)
	}
	if f.hasOnWrite {
		c.ctx.Lc().Unref(f.onWriteID)
		delete(c.compiled, f.onWriteID)
	}
}

// removeDeletedPublished tears down path's compiled entries and notifies
// dependents with a #REF error "process_update".
func (c *Container) removeDeletedPublished(path value.Path) {
	f, ok := c.byPath[path]
	if !ok {
		return
	}
	c.teardown(f)
	delete(c.byPath, path)
	c.refUpdates = append(c.refUpdates, refUpdate{path: path, v: value.Err("#REF")})
}

// UpdateRefs drains ref_updates and var_updates alternately to fixpoint,
// bounded to updateRefsBound iterations.
// When the bound is hit with queues still non-empty, it returns without
// having fully drained them — the caller is expected to re-invoke
// UpdateRefs on the next tick, mirroring the source's self-posted
// LcEvent::Refs continuation.
func (c *Container) UpdateRefs() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateRefsLocked()
}

func (c *Container) updateRefsLocked() error {
	for iter := 0; len(c.refUpdates) > 0 || len(c.varUpdates) > 0; iter++ {
		if iter >= updateRefsBound {
			return nil
		}
		if len(c.refUpdates) > 0 {
			batch := c.refUpdates
			c.refUpdates = nil
			for _, ru := range batch {
				ids := c.ctx.Lc().ExprsForRef(ru.path)
				c.dispatch(ids, vm.UserEvent(ru.path, ru.v))
			}
			continue
		}
		batch := c.varUpdates
		c.varUpdates = nil
		for _, vu := range batch {
			ids := c.ctx.Lc().ExprsForVar(vu.name)
			c.dispatch(ids, vm.VariableEvent(vu.name, vu.v))
		}
	}
	return nil
}

// dispatch invokes Update on every compiled entry named by ids and, for
// Formula entries that produced a new value, republishes and enqueues a
// fresh ref-update.
func (c *Container) dispatch(ids []expr.ID, ev vm.Event) {
	for _, id := range ids {
		entry, ok := c.compiled[id]
		if !ok {
			continue
		}
		v, changed := entry.node.Update(c.ctx, ev)
		if !changed {
			continue
		}
		if entry.kind == entryFormula {
			if err := c.pub.Publish(entry.dataID, v); err != nil {
				continue
			}
			c.refUpdates = append(c.refUpdates, refUpdate{path: entry.dataID, v: v})
		}
	}
	for _, w := range c.ctx.DrainWrites() {
		c.queueWrite(w.Path, w.Value)
	}
	for _, vw := range c.ctx.DrainVars() {
		c.varUpdates = append(c.varUpdates, varUpdate{name: vw.Name, v: vw.Value})
	}
}

// queueWrite is the `store` function's write path: it is treated exactly
// like an external write request. Called
// only from dispatch, which always runs with mu already held.
func (c *Container) queueWrite(path value.Path, v value.Value) {
	_ = c.processWriteLocked(path, v)
}

// ProcessWrite implements process_writes for a single (path, value)
// write request. Writes to the reserved `.formula`/
// `.on-write` suffixes rewrite a formula's sources instead of a data cell.
func (c *Container) ProcessWrite(path value.Path, v value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processWriteLocked(path, v)
}

func (c *Container) processWriteLocked(path value.Path, v value.Value) error {
	base := string(path)
	switch {
	case hasSuffix(base, formulaSuffix):
		return c.rewriteFormulaSource(trimSuffix(base, formulaSuffix), true, v)
	case hasSuffix(base, onWriteSuffix):
		return c.rewriteFormulaSource(trimSuffix(base, onWriteSuffix), false, v)
	}

	if f, ok := c.byPath[path]; ok && f.hasOnWrite {
		entry := c.compiled[f.onWriteID]
		entry.node.Update(c.ctx, vm.UserEvent(path, v))
		for _, w := range c.ctx.DrainWrites() {
			c.queueWrite(w.Path, w.Value)
		}
		for _, vw := range c.ctx.DrainVars() {
			c.varUpdates = append(c.varUpdates, varUpdate{name: vw.Name, v: vw.Value})
		}
		return c.updateRefsLocked()
	}

	if err := c.db.SetData(false, path, v); err != nil {
		return err
	}
	return c.processUpdateLocked()
}

// rewriteFormulaSource is called only from processWriteLocked, which
// already holds mu.
func (c *Container) rewriteFormulaSource(path value.Path, isFormula bool, v value.Value) error {
	src, ok := v.AsString()
	if !ok {
		return errorsx.New(errorsx.KindType, "formula/on-write source must be a string")
	}
	datum, _ := c.db.Lookup(path)
	fSrc, wSrc := datum.FormulaSrc, datum.OnWriteSrc
	if isFormula {
		fSrc = src
	} else {
		wSrc = src
	}
	if err := c.db.SetFormula(path, fSrc); err != nil {
		return err
	}
	if err := c.db.SetOnWrite(path, wSrc); err != nil {
		return err
	}
	// See the matching comment in HandleRpc's SetFormula case: discard the
	// change-log entries just recorded, since PublishFormula below already
	// does the compile/publish/fixpoint work directly.
	c.db.Finish()
	return c.publishFormulaLocked(path, fSrc, wSrc)
}

// ProcessUpdate drains the DB's change-log and, for each change, adjusts
// publisher state, emits a ref-update, and runs the fixpoint.
func (c *Container) ProcessUpdate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processUpdateLocked()
}

func (c *Container) processUpdateLocked() error {
	u := c.db.Finish()
	for _, change := range u.Changes {
		switch change.Kind {
		case store.Deleted:
			c.removeDeletedPublished(change.Path)
			continue
		case store.Inserted:
			if _, exists := c.byPath[change.Path]; exists {
				c.removeDeletedPublished(change.Path)
			}
		}
		if change.Datum.IsData {
			if err := c.pub.Publish(change.Path, change.Datum.Data); err != nil {
				return err
			}
			c.refUpdates = append(c.refUpdates, refUpdate{path: change.Path, v: change.Datum.Data})
		}
	}
	return c.updateRefsLocked()
}

// SetVariable assigns a variable and enqueues a var-update for the next
// UpdateRefs pass.
func (c *Container) SetVariable(name string, v value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.SetVar(name, v)
	for _, vw := range c.ctx.DrainVars() {
		c.varUpdates = append(c.varUpdates, varUpdate{name: vw.Name, v: vw.Value})
	}
	return c.updateRefsLocked()
}

// HandleRpc dispatches req, rejecting any path outside base_path.
func (c *Container) HandleRpc(req rpcapi.Request) value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := requestPath(req); ok && !c.IsWithinBase(p) {
		return value.Err(errorsx.NewPathError(string(p)).Message)
	}
	switch r := req.(type) {
	case rpcapi.Delete:
		if err := c.db.Remove(r.Path); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.DeleteSubtree:
		if err := c.db.RemoveSubtree(r.Path); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.LockSubtree:
		if err := c.db.SetLocked(r.Path); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.UnlockSubtree:
		if err := c.db.SetUnlocked(r.Path); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.SetData:
		if err := c.db.SetData(false, r.Path, r.Value); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.SetFormula:
		existing, _ := c.db.Lookup(r.Path)
		fSrc, wSrc := existing.FormulaSrc, existing.OnWriteSrc
		if r.Formula != nil {
			fSrc = *r.Formula
		}
		if r.OnWrite != nil {
			wSrc = *r.OnWrite
		}
		if err := c.db.SetFormula(r.Path, fSrc); err != nil {
			return value.Err(err.Error())
		}
		if err := c.db.SetOnWrite(r.Path, wSrc); err != nil {
			return value.Err(err.Error())
		}
		// PublishFormula below compiles, publishes, and runs the ref-update
		// fixpoint directly; drain and discard the change-log entries the
		// two db calls above just recorded so the trailing ProcessUpdate
		// does not also reprocess this row as an Insert and tear down the
		// entry PublishFormula just created.
		c.db.Finish()
		if err := c.publishFormulaLocked(r.Path, fSrc, wSrc); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.CreateSheet:
		if err := c.db.CreateSheet(r.Path, r.Rows, r.Columns, r.Lock); err != nil {
			return value.Err(err.Error())
		}
	case rpcapi.CreateTable:
		if err := c.db.CreateTable(r.Path, r.Rows, r.Columns, r.Lock); err != nil {
			return value.Err(err.Error())
		}
	default:
		invariant.Invariant(false, "container: unhandled rpc request type %T", req)
	}
	if err := c.processUpdateLocked(); err != nil {
		return value.Err(err.Error())
	}
	return value.Ok()
}

func requestPath(req rpcapi.Request) (value.Path, bool) {
	switch r := req.(type) {
	case rpcapi.Delete:
		return r.Path, true
	case rpcapi.DeleteSubtree:
		return r.Path, true
	case rpcapi.LockSubtree:
		return r.Path, true
	case rpcapi.UnlockSubtree:
		return r.Path, true
	case rpcapi.SetData:
		return r.Path, true
	case rpcapi.SetFormula:
		return r.Path, true
	case rpcapi.CreateSheet:
		return r.Path, true
	case rpcapi.CreateTable:
		return r.Path, true
	default:
		return "", false
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func trimSuffix(s, suffix string) value.Path {
	return value.Path(s[:len(s)-len(suffix)])
}

// String is used only for log/error formatting.
func (c *Container) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("container(base=%s, rows=%d)", c.basePath, len(c.byPath))
}
