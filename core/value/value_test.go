package value_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/value"
)

func TestArithmeticSameKind(t *testing.T) {
	got := value.Add(value.U64(1), value.U64(2))
	require.Equal(t, value.KindU64, got.Kind())
	want := value.U64(3)
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(value.Value{})); diff != "" {
		t.Fatalf("sum mismatch (-want +got):\n%s", diff)
	}
}

func TestArithmeticMixedKindWidens(t *testing.T) {
	got := value.Add(value.I32(2), value.Z32(3))
	assert.Equal(t, value.KindI32, got.Kind())
	got64 := value.Add(value.U32(1), value.U64(2))
	assert.Equal(t, value.KindU64, got64.Kind())
}

func TestArithmeticErrorShortCircuits(t *testing.T) {
	e := value.Err("boom")
	got := value.Add(e, value.U32(1))
	assert.True(t, got.IsError())
	assert.Equal(t, "boom", got.ErrorMessage())
}

func TestDivideByZero(t *testing.T) {
	got := value.Div(value.U32(4), value.U32(0))
	require.True(t, got.IsError())
	assert.Equal(t, "divide by zero", got.ErrorMessage())
}

func TestCmpNullNullIsTrue(t *testing.T) {
	got := value.Cmp("eq", value.Null(), value.Null())
	b, ok := got.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestCmpMixedTagIsFalseNotError(t *testing.T) {
	got := value.Cmp("eq", value.U32(1), value.String("1"))
	b, ok := got.AsBool()
	require.True(t, ok)
	assert.False(t, b)
	assert.False(t, got.IsError())
}

func TestEqualCrossKindUnequal(t *testing.T) {
	assert.False(t, value.Equal(value.Bool(true), value.U32(1)))
}
