package types

import (
	"time"

	"github.com/tycoworks/tycostream/internal/ident"
)

// ValueToJSON renders v as a plain Go value suitable for
// encoding/json, without silently narrowing BigInt to a float: BigInt
// is rendered as its decimal string form.
func ValueToJSON(v Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Type() {
	case DataTypeInteger:
		return v.Int()
	case DataTypeBigInt:
		if v.BigInt() == nil {
			return nil
		}
		return v.BigInt().String()
	case DataTypeFloat:
		return v.Float()
	case DataTypeString, DataTypeJSON, DataTypeArray:
		return v.Str()
	case DataTypeUUID:
		return v.UUID().String()
	case DataTypeTimestamp, DataTypeDate, DataTypeTime:
		return v.Time().Format(time.RFC3339Nano)
	case DataTypeBoolean:
		return v.Bool()
	default:
		return nil
	}
}

// RowToMap renders a Row as a column-name-keyed map for JSON encoding.
func RowToMap(r Row) map[string]any {
	out := make(map[string]any)
	_ = r.Range(func(col ident.Ident, v Value) error {
		out[col.Raw()] = ValueToJSON(v)
		return nil
	})
	return out
}
