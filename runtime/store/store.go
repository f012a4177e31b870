// Package store declares the embedded key/value DB contract the container
// runs against and a map-backed in-memory implementation.
package store

import (
	"sort"
	"sync"

	"github.com/bscript/container/core/value"
)

// Datum is at most one of Data or Formula per key.
type Datum struct {
	// Data holds a plain published value. Zero value (IsData false) means
	// this Datum is a Formula instead.
	IsData      bool
	Data        value.Value
	FormulaSrc  string
	OnWriteSrc  string
}

// ChangeKind classifies one entry in an Update change-log.
type ChangeKind int

const (
	Updated ChangeKind = iota
	Inserted
	Deleted
)

// Change describes one row mutation surfaced by Finish.
type Change struct {
	Path  value.Path
	Kind  ChangeKind
	Datum Datum // zero value when Kind == Deleted
}

// Update is the change-log produced by Finish.
type Update struct {
	Changes []Change
	Locked  []value.Path
	Unlocked []value.Path
}

// DB is the embedded key/value store contract.
type DB interface {
	Lookup(path value.Path) (Datum, bool)
	SetData(ifExists bool, path value.Path, v value.Value) error
	SetFormula(path value.Path, formulaSrc string) error
	SetOnWrite(path value.Path, onWriteSrc string) error
	Remove(path value.Path) error
	RemoveSubtree(path value.Path) error
	SetLocked(path value.Path) error
	SetUnlocked(path value.Path) error
	Locked() []value.Path
	Iter() []value.Path
	CreateSheet(path value.Path, rows, cols int, lock bool) error
	CreateTable(path value.Path, rowNames, colNames []string, lock bool) error
	// Finish drains and returns the accumulated change-log since the last
	// call, for process_update to consume.
	Finish() Update
}

// MemDB is an in-memory DB reference implementation, the same
// simplest-thing-that-satisfies-the-contract approach as
// runtime/pubsub.MemFabric.
type MemDB struct {
	mu      sync.Mutex
	rows    map[value.Path]Datum
	locked  map[value.Path]struct{}
	pending Update
}

func NewMemDB() *MemDB {
	return &MemDB{
		rows:   make(map[value.Path]Datum),
		locked: make(map[value.Path]struct{}),
	}
}

func (db *MemDB) Lookup(path value.Path) (Datum, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.rows[path]
	return d, ok
}

func (db *MemDB) record(path value.Path, kind ChangeKind, d Datum) {
	db.pending.Changes = append(db.pending.Changes, Change{Path: path, Kind: kind, Datum: d})
}

func (db *MemDB) SetData(ifExists bool, path value.Path, v value.Value) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, existed := db.rows[path]
	if ifExists && !existed {
		return ErrNotFound
	}
	d := Datum{IsData: true, Data: v}
	db.rows[path] = d
	if existed {
		db.record(path, Updated, d)
	} else {
		db.record(path, Inserted, d)
	}
	return nil
}

func (db *MemDB) SetFormula(path value.Path, formulaSrc string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, existed := db.rows[path]
	d.IsData = false
	d.FormulaSrc = formulaSrc
	db.rows[path] = d
	if existed {
		db.record(path, Updated, d)
	} else {
		db.record(path, Inserted, d)
	}
	return nil
}

func (db *MemDB) SetOnWrite(path value.Path, onWriteSrc string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, existed := db.rows[path]
	d.OnWriteSrc = onWriteSrc
	db.rows[path] = d
	if existed {
		db.record(path, Updated, d)
	} else {
		db.record(path, Inserted, d)
	}
	return nil
}

func (db *MemDB) Remove(path value.Path) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.rows[path]; !ok {
		return ErrNotFound
	}
	delete(db.rows, path)
	db.record(path, Deleted, Datum{})
	return nil
}

func (db *MemDB) RemoveSubtree(path value.Path) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for p := range db.rows {
		if value.IsParent(path, p) {
			delete(db.rows, p)
			db.record(p, Deleted, Datum{})
		}
	}
	return nil
}

func (db *MemDB) SetLocked(path value.Path) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.locked[path] = struct{}{}
	db.pending.Locked = append(db.pending.Locked, path)
	return nil
}

func (db *MemDB) SetUnlocked(path value.Path) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.locked, path)
	db.pending.Unlocked = append(db.pending.Unlocked, path)
	return nil
}

func (db *MemDB) Locked() []value.Path {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]value.Path, 0, len(db.locked))
	for p := range db.locked {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (db *MemDB) Iter() []value.Path {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]value.Path, 0, len(db.rows))
	for p := range db.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (db *MemDB) CreateSheet(path value.Path, rows, cols int, lock bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cellPath := path.Append(itoa(r)).Append(itoa(c))
			db.rows[cellPath] = Datum{IsData: true, Data: value.Null()}
			db.record(cellPath, Inserted, db.rows[cellPath])
		}
	}
	if lock {
		db.locked[path] = struct{}{}
	}
	return nil
}

func (db *MemDB) CreateTable(path value.Path, rowNames, colNames []string, lock bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, r := range rowNames {
		for _, c := range colNames {
			cellPath := path.Append(r).Append(c)
			db.rows[cellPath] = Datum{IsData: true, Data: value.Null()}
			db.record(cellPath, Inserted, db.rows[cellPath])
		}
	}
	if lock {
		db.locked[path] = struct{}{}
	}
	return nil
}

func (db *MemDB) Finish() Update {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := db.pending
	db.pending = Update{}
	return u
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ErrNotFound is returned by SetData(ifExists=true,...) and Remove for a
// path with no row.
var ErrNotFound = dbError("store: path not found")

type dbError string

func (e dbError) Error() string { return string(e) }
