package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatToWire(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{50000, "50000"},
		{1.5, "1.5"},
		{0.001, "0.001"},
		{0, "0"},
		{-2.25, "-2.25"},
		{1234.56780000, "1234.5678"},
	}

	for _, tc := range cases {
		got, err := FloatToWire(tc.in)
		require.NoError(t, err, "FloatToWire(%v)", tc.in)
		assert.Equal(t, tc.want, got, "FloatToWire(%v)", tc.in)
	}
}

func TestFloatToWireRejectsPrecisionLoss(t *testing.T) {
	// More than 8 fractional digits cannot round-trip
	_, err := FloatToWire(0.123456789123)
	require.Error(t, err)
}

func TestRoundToSigfigs(t *testing.T) {
	assert.InDelta(t, 50500.0, roundToSigfigs(50500.0, 5), 1e-9)
	assert.InDelta(t, 12346.0, roundToSigfigs(12345.6789, 5), 1e-9)
	assert.InDelta(t, 0.0012346, roundToSigfigs(0.00123456, 5), 1e-12)
	assert.Equal(t, 0.0, roundToSigfigs(0, 5))
}

func TestOrderToWire(t *testing.T) {
	req := OrderRequest{
		Coin:      "BTC",
		IsBuy:     true,
		Sz:        1.5,
		LimitPx:   50000,
		OrderType: OrderType{Limit: &LimitOrderType{Tif: TifGtc}},
	}

	wire, err := orderToWire(req, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, wire.Asset)
	assert.True(t, wire.IsBuy)
	assert.Equal(t, "50000", wire.LimitPx)
	assert.Equal(t, "1.5", wire.Sz)
	assert.False(t, wire.ReduceOnly)
	require.NotNil(t, wire.OrderType.Limit)
	assert.Equal(t, TifGtc, wire.OrderType.Limit.Tif)
}

func TestDexOf(t *testing.T) {
	assert.Equal(t, "xyz", dexOf("xyz:GOLD"))
	assert.Equal(t, "", dexOf("BTC"))
}
