package upstream

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycoworks/tycostream/internal/types"
)

func TestDecodeValueNilIsNull(t *testing.T) {
	v, err := decodeValue(types.DataTypeString, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestDecodeValueInteger(t *testing.T) {
	v, err := decodeValue(types.DataTypeInteger, int32(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int())
}

func TestDecodeValueBigIntFromString(t *testing.T) {
	v, err := decodeValue(types.DataTypeBigInt, "123456789012345678901234567890")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	assert.Equal(t, 0, v.BigInt().Cmp(want))
}

func TestDecodeValueBigIntMalformedStringErrors(t *testing.T) {
	_, err := decodeValue(types.DataTypeBigInt, "not-a-number")
	assert.Error(t, err)
}

func TestDecodeValueFloat(t *testing.T) {
	v, err := decodeValue(types.DataTypeFloat, float32(3.5))
	require.NoError(t, err)
	assert.InDelta(t, 3.5, v.Float(), 0.0001)
}

func TestDecodeValueStringFromBytes(t *testing.T) {
	v, err := decodeValue(types.DataTypeString, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str())
}

func TestDecodeValueUUIDFromString(t *testing.T) {
	id := uuid.New()
	v, err := decodeValue(types.DataTypeUUID, id.String())
	require.NoError(t, err)
	assert.Equal(t, id, v.UUID())
}

func TestDecodeValueUUIDMalformedStringErrors(t *testing.T) {
	_, err := decodeValue(types.DataTypeUUID, "not-a-uuid")
	assert.Error(t, err)
}

func TestDecodeValueTimestamp(t *testing.T) {
	now := time.Now()
	v, err := decodeValue(types.DataTypeTimestamp, now)
	require.NoError(t, err)
	assert.True(t, now.Equal(v.Time()))
}

func TestDecodeValueBoolean(t *testing.T) {
	v, err := decodeValue(types.DataTypeBoolean, true)
	require.NoError(t, err)
	assert.True(t, v.Bool())
}

func TestDecodeValueTypeMismatchErrors(t *testing.T) {
	_, err := decodeValue(types.DataTypeInteger, "not-an-integer")
	assert.Error(t, err)
}
