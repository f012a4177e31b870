// Package pubsub declares the pub/sub fabric contract the container runs
// against and provides an in-memory reference
// implementation used by tests and the standalone CLI mode.
package pubsub

import (
	"sync"

	"github.com/bscript/container/core/value"
)

// SubID identifies a live durable subscription.
type SubID uint64

// UpdateFlags controls delivery semantics for Dval.Updates and
// Publisher.PublishWithFlags.
type UpdateFlags uint8

const (
	// DestroyOnIdle releases the publish slot once its last subscriber
	// disconnects, rather than retaining it indefinitely.
	DestroyOnIdle UpdateFlags = 1 << iota
)

// Dval is a single durable subscription handle.
type Dval interface {
	ID() SubID
	Last() (value.Value, bool)
	// Updates registers sink to receive every subsequent update. Passing a
	// nil sink cancels a prior registration.
	Updates(flags UpdateFlags, sink func(value.Value))
}

// UpdateBatch accumulates writes for atomic commit at the end of a VM tick.
type UpdateBatch interface {
	Update(path value.Path, v value.Value)
	// Commit flushes the batch. timeoutMS <= 0 means no deadline.
	Commit(timeoutMS int) error
}

// Publisher is the write side of the fabric.
type Publisher interface {
	Publish(path value.Path, v value.Value) error
	PublishWithFlags(path value.Path, v value.Value, flags UpdateFlags) error
	StartBatch() UpdateBatch
	Current(path value.Path) (value.Value, bool)
	Shutdown()
}

// Subscriber is the read side of the fabric.
type Subscriber interface {
	DurableSubscribe(path value.Path) (Dval, error)
}

// MemFabric is an in-memory Publisher+Subscriber pair: publishing a path
// immediately updates every live Dval subscribed to it. It exists so
// runtime/container and its tests can run without a real resolver/daemon,
// exercising a local stub transport rather than a live daemon.
type MemFabric struct {
	mu      sync.Mutex
	values  map[value.Path]value.Value
	subs    map[value.Path][]*memDval
	nextSub SubID
}

func NewMemFabric() *MemFabric {
	return &MemFabric{
		values: make(map[value.Path]value.Value),
		subs:   make(map[value.Path][]*memDval),
	}
}

type memDval struct {
	id   SubID
	path value.Path
	f    *MemFabric
	sink func(value.Value)
}

func (d *memDval) ID() SubID { return d.id }

func (d *memDval) Last() (value.Value, bool) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	v, ok := d.f.values[d.path]
	return v, ok
}

func (d *memDval) Updates(flags UpdateFlags, sink func(value.Value)) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.sink = sink
}

type memBatch struct {
	f       *MemFabric
	pending map[value.Path]value.Value
}

func (b *memBatch) Update(path value.Path, v value.Value) {
	b.pending[path] = v
}

func (b *memBatch) Commit(timeoutMS int) error {
	b.f.mu.Lock()
	var toNotify []func()
	for path, v := range b.pending {
		b.f.values[path] = v
		for _, d := range b.f.subs[path] {
			d, v := d, v
			if d.sink != nil {
				toNotify = append(toNotify, func() { d.sink(v) })
			}
		}
	}
	b.f.mu.Unlock()
	for _, fn := range toNotify {
		fn()
	}
	return nil
}

func (f *MemFabric) Publish(path value.Path, v value.Value) error {
	return f.PublishWithFlags(path, v, 0)
}

func (f *MemFabric) PublishWithFlags(path value.Path, v value.Value, _ UpdateFlags) error {
	b := f.StartBatch()
	b.Update(path, v)
	return b.Commit(0)
}

func (f *MemFabric) StartBatch() UpdateBatch {
	return &memBatch{f: f, pending: make(map[value.Path]value.Value)}
}

func (f *MemFabric) Current(path value.Path) (value.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[path]
	return v, ok
}

func (f *MemFabric) Shutdown() {}

func (f *MemFabric) DurableSubscribe(path value.Path) (Dval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	d := &memDval{id: f.nextSub, path: path, f: f}
	f.subs[path] = append(f.subs[path], d)
	return d, nil
}
