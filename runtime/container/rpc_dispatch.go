package container

import (
	"sync"
	"time"

	"github.com/bscript/container/core/value"
)

// rpcGCInterval/rpcIdleTimeout govern the background GC sweep: a per-path
// worker with no call for 120s expires, checked every 60s by a ticker
// goroutine that evicts idle workers.
const (
	rpcIdleTimeout = 120 * time.Second
	rpcGCInterval  = 60 * time.Second
)

// RpcTransport performs the actual call to a named RPC procedure. The
// container supplies a transport at construction (a real resolver-routed
// RPC client in production, a fake in tests).
type RpcTransport interface {
	Call(path value.Path, args []value.Value) (value.Value, error)
}

// rpcCall is one outstanding request queued to a path's worker.
type rpcCall struct {
	callID string
	args   []value.Value
}

// rpcProc is the per-path worker task that serializes outstanding calls to
// one RPC procedure, mirroring "per-name worker task serializing
// outstanding calls".
type rpcProc struct {
	path     value.Path
	work     chan rpcCall
	done     chan struct{}
	lastUsed atomic64
}

// atomic64 guards lastUsed with its own small mutex so the GC sweep can
// read it while the worker updates it.
type atomic64 struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomic64) set(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomic64) get() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}

// rpcDispatcher owns the pool of per-path worker tasks and their GC sweep.
type rpcDispatcher struct {
	mu    sync.Mutex
	procs map[value.Path]*rpcProc

	transport RpcTransport
	onReply   func(callID string, v value.Value)

	stop chan struct{}
}

func newRpcDispatcher() *rpcDispatcher {
	return &rpcDispatcher{procs: make(map[value.Path]*rpcProc)}
}

// Start wires the transport and reply sink and launches the GC sweep.
// Separate from newRpcDispatcher so Container can be constructed before
// its ExecCtx callback closure exists.
func (d *rpcDispatcher) Start(transport RpcTransport, onReply func(string, value.Value)) {
	d.mu.Lock()
	d.transport = transport
	d.onReply = onReply
	d.stop = make(chan struct{})
	d.mu.Unlock()
	go d.gcLoop()
}

// Stop halts the GC sweep and every worker task. Idempotent.
func (d *rpcDispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	for path, p := range d.procs {
		close(p.done)
		delete(d.procs, path)
	}
}

// Dispatch enqueues one call against path's worker, spawning it if none
// exists yet.
func (d *rpcDispatcher) Dispatch(path value.Path, callID string, args []value.Value) {
	d.mu.Lock()
	p, ok := d.procs[path]
	if !ok {
		p = &rpcProc{path: path, work: make(chan rpcCall, 16), done: make(chan struct{})}
		d.procs[path] = p
		go d.runProc(p)
	}
	d.mu.Unlock()
	p.lastUsed.set(time.Now())
	p.work <- rpcCall{callID: callID, args: args}
}

func (d *rpcDispatcher) runProc(p *rpcProc) {
	for {
		select {
		case call := <-p.work:
			d.mu.Lock()
			transport, onReply := d.transport, d.onReply
			d.mu.Unlock()
			p.lastUsed.set(time.Now())
			if transport == nil {
				continue
			}
			v, err := transport.Call(p.path, call.args)
			if err != nil {
				v = value.Errf("rpc: %v", err)
			}
			if onReply != nil {
				onReply(call.callID, v)
			}
		case <-p.done:
			return
		}
	}
}

func (d *rpcDispatcher) gcLoop() {
	ticker := time.NewTicker(rpcGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.sweep()
		case <-d.stop:
			return
		}
	}
}

func (d *rpcDispatcher) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for path, p := range d.procs {
		if now.Sub(p.lastUsed.get()) > rpcIdleTimeout {
			close(p.done)
			delete(d.procs, path)
		}
	}
}
