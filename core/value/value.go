// Package value implements the dynamic tagged value that flows through the
// VM and the container's published cells.
package value

import (
	"fmt"
	"math"
)

// Kind tags the variant held by a Value. The zero Kind is intentionally
// invalid (not Null) so a zero-value Value is caught by invariant checks
// instead of silently comparing equal to an explicit Null.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindU32
	KindV32
	KindI32
	KindZ32
	KindU64
	KindV64
	KindI64
	KindZ64
	KindF32
	KindF64
	KindBool
	KindString
	KindBytes
	KindNull
	KindOk
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindU32:
		return "u32"
	case KindV32:
		return "v32"
	case KindI32:
		return "i32"
	case KindZ32:
		return "z32"
	case KindU64:
		return "u64"
	case KindV64:
		return "v64"
	case KindI64:
		return "i64"
	case KindZ64:
		return "z64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindNull:
		return "null"
	case KindOk:
		return "ok"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// Value is a dynamic tagged scalar. It is deliberately a plain struct (not
// an interface) so equality is structural and cheap: the VM compares
// `current` values on every tick.
type Value struct {
	kind Kind
	num  uint64 // U32/V32/I32/Z32/U64/V64/I64/Z64 (bit pattern) and F32/F64 (math.Float64bits)
	bool_ bool
	str  string // String, Error message
	byts []byte // Bytes (shared, not copied on read — callers must not mutate)
}

// Constructors. U32/V32 are unsigned/wrapping 32-bit variants that both
// live in `num` as their literal bit pattern; I32/Z32 are signed 32-bit
// variants using the same storage via two's complement.

func U32(v uint32) Value  { return Value{kind: KindU32, num: uint64(v)} }
func V32(v uint32) Value  { return Value{kind: KindV32, num: uint64(v)} }
func I32(v int32) Value   { return Value{kind: KindI32, num: uint64(uint32(v))} }
func Z32(v int32) Value   { return Value{kind: KindZ32, num: uint64(uint32(v))} }
func U64(v uint64) Value  { return Value{kind: KindU64, num: v} }
func V64(v uint64) Value  { return Value{kind: KindV64, num: v} }
func I64(v int64) Value   { return Value{kind: KindI64, num: uint64(v)} }
func Z64(v int64) Value   { return Value{kind: KindZ64, num: uint64(v)} }
func F32(v float32) Value { return Value{kind: KindF32, num: uint64(math.Float32bits(v))} }
func F64(v float64) Value { return Value{kind: KindF64, num: math.Float64bits(v)} }

func Bool(v bool) Value { return Value{kind: KindBool, bool_: v} }

func String(v string) Value { return Value{kind: KindString, str: v} }
func Bytes(v []byte) Value  { return Value{kind: KindBytes, byts: v} }

func Null() Value { return Value{kind: KindNull} }
func Ok() Value    { return Value{kind: KindOk} }
func Err(msg string) Value {
	return Value{kind: KindError, str: msg}
}
func Errf(format string, args ...any) Value {
	return Err(fmt.Sprintf(format, args...))
}

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsError reports whether v is an Error value.
func (v Value) IsError() bool { return v.kind == KindError }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// ErrorMessage returns the error message, or "" if v is not an Error.
func (v Value) ErrorMessage() string {
	if v.kind != KindError {
		return ""
	}
	return v.str
}

// AsString returns the string payload for String and the message for Error.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString, KindError:
		return v.str, true
	default:
		return "", false
	}
}

// AsBytes returns the byte payload for Bytes values.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.byts, true
}

// AsBool returns the bool payload for Bool values.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.bool_, true
}

// AsInt widens any integer-kind Value to int64. The second return is false
// for non-integer kinds.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindU32, KindV32:
		return int64(uint32(v.num)), true
	case KindI32, KindZ32:
		return int64(int32(v.num)), true
	case KindU64, KindV64:
		return int64(v.num), true
	case KindI64, KindZ64:
		return int64(v.num), true
	default:
		return 0, false
	}
}

// AsFloat widens any numeric-kind Value (integer or float) to float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindF32:
		return float64(math.Float32frombits(uint32(v.num))), true
	case KindF64:
		return math.Float64frombits(v.num), true
	default:
		if i, ok := v.AsInt(); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// isSigned reports whether kind is one of the signed integer kinds.
func (k Kind) isSigned() bool {
	switch k {
	case KindI32, KindZ32, KindI64, KindZ64:
		return true
	default:
		return false
	}
}

// isUnsigned reports whether kind is one of the unsigned integer kinds.
func (k Kind) isUnsigned() bool {
	switch k {
	case KindU32, KindV32, KindU64, KindV64:
		return true
	default:
		return false
	}
}

// isInt reports whether kind is any integer kind.
func (k Kind) isInt() bool { return k.isSigned() || k.isUnsigned() }

// isFloat reports whether kind is F32 or F64.
func (k Kind) isFloat() bool { return k == KindF32 || k == KindF64 }

// is64 reports whether kind is a 64-bit integer kind.
func (k Kind) is64() bool {
	switch k {
	case KindU64, KindV64, KindI64, KindZ64:
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindError:
		return "#ERR: " + v.str
	case KindBool:
		if v.bool_ {
			return "true"
		}
		return "false"
	case KindNull:
		return "null"
	case KindOk:
		return "ok"
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.byts))
	case KindF32, KindF64:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%v", f)
	default:
		if i, ok := v.AsInt(); ok {
			return fmt.Sprintf("%d", i)
		}
		return "invalid"
	}
}
