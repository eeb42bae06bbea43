package upstream

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tycoworks/tycostream/internal/types"
)

// decodeValue converts a value already decoded by pgx into a Go native
// type (via pgx.Rows.Values) into the typed Value the declared schema
// column expects. A mismatch between the declared type and what the
// wire actually produced is a permanent decode error, fatal to the
// source (spec §4.2 "unrecognized wire format for a declared column
// type").
func decodeValue(dt types.DataType, raw any) (types.Value, error) {
	if raw == nil {
		return types.Null(dt), nil
	}

	switch dt {
	case types.DataTypeInteger:
		switch v := raw.(type) {
		case int64:
			return types.IntegerValue(v), nil
		case int32:
			return types.IntegerValue(int64(v)), nil
		case int16:
			return types.IntegerValue(int64(v)), nil
		}
	case types.DataTypeBigInt:
		switch v := raw.(type) {
		case int64:
			return types.BigIntValue(big.NewInt(v)), nil
		case string:
			bi, ok := new(big.Int).SetString(v, 10)
			if !ok {
				return types.Value{}, errors.Errorf("bigint column: cannot parse %q", v)
			}
			return types.BigIntValue(bi), nil
		}
	case types.DataTypeFloat:
		switch v := raw.(type) {
		case float64:
			return types.FloatValue(v), nil
		case float32:
			return types.FloatValue(float64(v)), nil
		}
	case types.DataTypeString, types.DataTypeJSON, types.DataTypeArray:
		switch v := raw.(type) {
		case string:
			return types.StringValue(v), nil
		case []byte:
			return types.StringValue(string(v)), nil
		case fmt.Stringer:
			return types.StringValue(v.String()), nil
		}
	case types.DataTypeUUID:
		switch v := raw.(type) {
		case [16]byte:
			return types.UUIDValue(uuid.UUID(v)), nil
		case uuid.UUID:
			return types.UUIDValue(v), nil
		case string:
			u, err := uuid.Parse(v)
			if err != nil {
				return types.Value{}, errors.Wrap(err, "uuid column")
			}
			return types.UUIDValue(u), nil
		}
	case types.DataTypeTimestamp:
		if v, ok := raw.(time.Time); ok {
			return types.TimestampValue(v), nil
		}
	case types.DataTypeDate:
		if v, ok := raw.(time.Time); ok {
			return types.DateValue(v), nil
		}
	case types.DataTypeTime:
		if v, ok := raw.(time.Time); ok {
			return types.TimeValue(v), nil
		}
	case types.DataTypeBoolean:
		if v, ok := raw.(bool); ok {
			return types.BooleanValue(v), nil
		}
	}

	return types.Value{}, errors.Errorf("cannot decode wire value %T as %v", raw, dt)
}
