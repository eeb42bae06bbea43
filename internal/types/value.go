// Package types contains the data types and interfaces that define the
// major functional blocks of tycostream: the fixed column-type
// taxonomy, row/event representations, and the cross-package contracts
// that the cache, filter, subscriber and trigger packages compose
// against.
package types

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// DataType is the fixed taxonomy of column types a Source may declare.
// It drives decoding of upstream wire values.
//
//go:generate go run golang.org/x/tools/cmd/stringer -type=DataType -trimprefix DataType
type DataType int

// The fixed taxonomy. New members must not be added without updating
// every switch over DataType in the decode and filter packages.
const (
	DataTypeUnknown DataType = iota
	DataTypeInteger
	DataTypeBigInt
	DataTypeFloat
	DataTypeString
	DataTypeUUID
	DataTypeTimestamp
	DataTypeDate
	DataTypeTime
	DataTypeBoolean
	DataTypeJSON
	DataTypeArray
)

// Value is a tagged variant holding exactly one typed value, or null.
// Null is a distinct state, not a sentinel of another type.
type Value struct {
	typ     DataType
	isNull  bool
	i       int64
	bigInt  *big.Int
	f       float64
	s       string
	u       uuid.UUID
	t       time.Time
	b       bool
}

// Null returns the null Value for the given type.
func Null(typ DataType) Value { return Value{typ: typ, isNull: true} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.isNull }

// Type returns the value's declared column type.
func (v Value) Type() DataType { return v.typ }

// IntegerValue constructs a 32/64-bit integer value.
func IntegerValue(i int64) Value { return Value{typ: DataTypeInteger, i: i} }

// Int returns the integer payload; valid only when Type() == DataTypeInteger.
func (v Value) Int() int64 { return v.i }

// BigIntValue constructs an arbitrary-precision integer value. BigInt
// is never narrowed to a float, per the no-silent-truncation invariant.
func BigIntValue(b *big.Int) Value { return Value{typ: DataTypeBigInt, bigInt: b} }

// BigInt returns the arbitrary-precision payload; valid only when
// Type() == DataTypeBigInt.
func (v Value) BigInt() *big.Int { return v.bigInt }

// FloatValue constructs a floating-point value.
func FloatValue(f float64) Value { return Value{typ: DataTypeFloat, f: f} }

// Float returns the float payload; valid only when Type() == DataTypeFloat.
func (v Value) Float() float64 { return v.f }

// StringValue constructs a string value. JSON and Array columns are
// also represented this way, carrying their upstream-encoded text
// opaquely.
func StringValue(s string) Value { return Value{typ: DataTypeString, s: s} }

// JSONValue wraps an opaque JSON-encoded string.
func JSONValue(s string) Value { return Value{typ: DataTypeJSON, s: s} }

// ArrayValue wraps an opaque array-encoded string.
func ArrayValue(s string) Value { return Value{typ: DataTypeArray, s: s} }

// Str returns the string payload; valid for DataTypeString,
// DataTypeJSON, and DataTypeArray.
func (v Value) Str() string { return v.s }

// UUIDValue constructs a UUID value.
func UUIDValue(u uuid.UUID) Value { return Value{typ: DataTypeUUID, u: u} }

// UUID returns the UUID payload; valid only when Type() == DataTypeUUID.
func (v Value) UUID() uuid.UUID { return v.u }

// TimestampValue constructs a timestamp value, decoded from the
// upstream's ISO-8601 text.
func TimestampValue(t time.Time) Value { return Value{typ: DataTypeTimestamp, t: t} }

// DateValue constructs a date-only value.
func DateValue(t time.Time) Value { return Value{typ: DataTypeDate, t: t} }

// TimeValue constructs a time-of-day value.
func TimeValue(t time.Time) Value { return Value{typ: DataTypeTime, t: t} }

// Time returns the time payload; valid for DataTypeTimestamp,
// DataTypeDate, and DataTypeTime.
func (v Value) Time() time.Time { return v.t }

// BooleanValue constructs a boolean value.
func BooleanValue(b bool) Value { return Value{typ: DataTypeBoolean, b: b} }

// Bool returns the boolean payload; valid only when Type() == DataTypeBoolean.
func (v Value) Bool() bool { return v.b }

// Equal reports whether two values of the same declared type are
// value-equal, including null-vs-nonnull being unequal. Comparing
// values of different types is always unequal.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	if a.isNull != b.isNull {
		return false
	}
	if a.isNull {
		return true
	}
	switch a.typ {
	case DataTypeInteger:
		return a.i == b.i
	case DataTypeBigInt:
		if a.bigInt == nil || b.bigInt == nil {
			return a.bigInt == b.bigInt
		}
		return a.bigInt.Cmp(b.bigInt) == 0
	case DataTypeFloat:
		return a.f == b.f
	case DataTypeString, DataTypeJSON, DataTypeArray:
		return a.s == b.s
	case DataTypeUUID:
		return a.u == b.u
	case DataTypeTimestamp, DataTypeDate, DataTypeTime:
		return a.t.Equal(b.t)
	case DataTypeBoolean:
		return a.b == b.b
	default:
		return false
	}
}
