package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/registry"
)

func TestRegisterAndLookup(t *testing.T) {
	r := registry.New()
	r.Register("sum", registry.Descriptor{Arity: registry.AtLeast(1), Doc: "sums its arguments"}, "factory-placeholder")

	desc, factory, ok := r.Lookup("sum")
	require.True(t, ok)
	assert.Equal(t, "sum", desc.Name)
	assert.Equal(t, "factory-placeholder", factory)

	_, _, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestArityAccepts(t *testing.T) {
	fixed := registry.Fixed(2)
	assert.True(t, fixed.Accepts(2))
	assert.False(t, fixed.Accepts(1))
	assert.False(t, fixed.Accepts(3))

	atLeast := registry.AtLeast(1)
	assert.True(t, atLeast.Accepts(1))
	assert.True(t, atLeast.Accepts(100))
	assert.False(t, atLeast.Accepts(0))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := registry.New()
	r.Register("dup", registry.Descriptor{Arity: registry.Fixed(0)}, nil)
	require.Panics(t, func() {
		r.Register("dup", registry.Descriptor{Arity: registry.Fixed(0)}, nil)
	})
}

func TestNamesSorted(t *testing.T) {
	r := registry.New()
	r.Register("zeta", registry.Descriptor{Arity: registry.Fixed(0)}, nil)
	r.Register("alpha", registry.Descriptor{Arity: registry.Fixed(0)}, nil)
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
