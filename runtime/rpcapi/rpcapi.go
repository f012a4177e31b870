// Package rpcapi declares the closed set of RPC requests the container
// accepts. Every variant replies with either
// value.Ok() or a value.Err; the container rejects any path that is not a
// descendant of its base_path before dispatch.
package rpcapi

import "github.com/bscript/container/core/value"

// Request is the sealed interface over the eight accepted RPC request
// shapes. Sealed via an unexported marker method so runtime/container's
// dispatch switch is exhaustively checkable.
type Request interface {
	isRequest()
}

type Delete struct{ Path value.Path }
type DeleteSubtree struct{ Path value.Path }
type LockSubtree struct{ Path value.Path }
type UnlockSubtree struct{ Path value.Path }

type SetData struct {
	Path  value.Path
	Value value.Value
}

type SetFormula struct {
	Path     value.Path
	Formula  *string
	OnWrite  *string
}

type CreateSheet struct {
	Path    value.Path
	Rows    int
	Columns int
	Lock    bool
}

type CreateTable struct {
	Path    value.Path
	Rows    []string
	Columns []string
	Lock    bool
}

func (Delete) isRequest()        {}
func (DeleteSubtree) isRequest() {}
func (LockSubtree) isRequest()   {}
func (UnlockSubtree) isRequest() {}
func (SetData) isRequest()       {}
func (SetFormula) isRequest()    {}
func (CreateSheet) isRequest()   {}
func (CreateTable) isRequest()   {}
