package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceParamsNumbersAndStrings(t *testing.T) {
	p, err := CoerceParams([]byte(`{"period": 14, "deviation": "0.05", "enabled": true, "skip": null}`))
	require.NoError(t, err)
	assert.Equal(t, 14.0, p["period"])
	assert.Equal(t, 0.05, p["deviation"])
	assert.Equal(t, 1.0, p["enabled"])
	_, ok := p["skip"]
	assert.False(t, ok)
}

func TestCoerceParamsEmpty(t *testing.T) {
	p, err := CoerceParams(nil)
	require.NoError(t, err)
	assert.Empty(t, p)

	p, err = CoerceParams([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestCoerceParamsRejectsNonNumericString(t *testing.T) {
	_, err := CoerceParams([]byte(`{"period": "fast"}`))
	assert.Error(t, err)
}

func TestCoerceParamsRejectsNested(t *testing.T) {
	_, err := CoerceParams([]byte(`{"period": {"value": 14}}`))
	assert.Error(t, err)
}

func TestCoerceParamsRejectsArrayRoot(t *testing.T) {
	_, err := CoerceParams([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestMergeKeepsExplicitOverDefault(t *testing.T) {
	merged := Merge(RSIStrategy, Params{"period": 7})
	assert.Equal(t, 7.0, merged["period"])
	assert.Equal(t, 30.0, merged["oversold"])
	assert.Equal(t, 70.0, merged["overbought"])
}
