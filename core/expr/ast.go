// Package expr implements the formula expression parser. An Expression is either a Constant or an Apply of named arguments;
// every successful parse mints a fresh ExprId used as the key into the
// container's dependency indices (core/depindex).
package expr

import (
	"strings"
	"sync/atomic"

	"github.com/bscript/container/core/value"
)

// ID is a stable identity minted once per successful parse. Two textually
// identical sources parsed twice receive different IDs — a plain atomic
// counter, since only freshness is required, not a keyed/deterministic
// digest.
type ID uint64

var idCounter atomic.Uint64

// nextID mints a fresh ExprId.
func nextID() ID {
	return ID(idCounter.Add(1))
}

// Expression is a parsed formula tree node.
type Expression interface {
	// ExprID returns this node's stable identity.
	ExprID() ID
	// String renders the expression back to (approximately) its source form.
	String() string
	isExpression()
}

// Constant is a literal value embedded in the formula source.
type Constant struct {
	ID    ID
	Value value.Value
}

func (c *Constant) ExprID() ID    { return c.ID }
func (c *Constant) isExpression()  {}
func (c *Constant) String() string { return c.Value.String() }

// Apply is a named function call over child expressions.
type Apply struct {
	ID       ID
	Function string
	Args     []Expression
}

func (a *Apply) ExprID() ID   { return a.ID }
func (a *Apply) isExpression() {}
func (a *Apply) String() string {
	parts := make([]string, len(a.Args))
	for i, arg := range a.Args {
		parts[i] = arg.String()
	}
	return a.Function + "(" + strings.Join(parts, ", ") + ")"
}

// NewConstant builds a Constant with a fresh ExprId.
func NewConstant(v value.Value) *Constant {
	return &Constant{ID: nextID(), Value: v}
}

// NewApply builds an Apply with a fresh ExprId.
func NewApply(function string, args ...Expression) *Apply {
	return &Apply{ID: nextID(), Function: function, Args: args}
}
