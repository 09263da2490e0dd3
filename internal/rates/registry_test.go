package rates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name   string
		symbol string
		value  string
		want   int64
		err    error
	}{
		{name: "whole", symbol: "MNEE", value: "3", want: 300000},
		{name: "fraction", symbol: "MNEE", value: "2.5", want: 250000},
		{name: "full precision", symbol: "USDC", value: "0.000001", want: 1},
		{name: "usd cents", symbol: "USD", value: "12.34", want: 1234},
		{name: "leading dot", symbol: "USD", value: ".50", want: 50},
		{name: "excess precision", symbol: "USD", value: "1.005", err: ErrAmountPrecision},
		{name: "negative", symbol: "USD", value: "-1", err: ErrInvalidAmount},
		{name: "empty", symbol: "USD", value: "", err: ErrInvalidAmount},
		{name: "not a number", symbol: "USD", value: "abc", err: ErrInvalidAmount},
		{name: "unknown token", symbol: "DOGE", value: "1", err: ErrUnknownToken},
		// 922337203685478 * 10^5 wraps int64; it must be rejected, not
		// quoted as a small positive amount.
		{name: "overflow rejected", symbol: "MNEE", value: "922337203685478", err: ErrInvalidAmount},
		{name: "max representable", symbol: "MNEE", value: "92233720368547.75807", want: 9223372036854775807},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.symbol, tc.value)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "3.00000", FormatAmount("MNEE", 300000))
	assert.Equal(t, "0.50000", FormatAmount("MNEE", 50000))
	assert.Equal(t, "12.34", FormatAmount("USD", 1234))
	assert.Equal(t, "2.000000", FormatAmount("USDC", 2000000))
}

func TestStaticSourceDerivesInverse(t *testing.T) {
	source := NewStaticSource(map[string]float64{"USD/MNEE": 2.0})

	rate, err := source.Rate(context.Background(), "USD", "MNEE")
	require.NoError(t, err)
	assert.Equal(t, 2.0, rate)

	inverse, err := source.Rate(context.Background(), "MNEE", "USD")
	require.NoError(t, err)
	assert.Equal(t, 0.5, inverse)

	same, err := source.Rate(context.Background(), "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, same)

	_, err = source.Rate(context.Background(), "USD", "USDT")
	require.ErrorIs(t, err, ErrNoRate)
}

func TestResolverToTreasury(t *testing.T) {
	source := NewStaticSource(map[string]float64{
		"USD/MNEE":  1.0,
		"USDC/MNEE": 1.0,
	})
	resolver := NewResolver(zap.NewNop(), source, "MNEE")

	// 3.00 USD at rate 1.0 is 3 MNEE despite the decimals gap (2 vs 5).
	minor, rate, err := resolver.ToTreasury(context.Background(), "USD", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), minor)
	assert.Equal(t, 1.0, rate)

	// 2 USDC (6 decimals) scales down to 5 decimals.
	minor, _, err = resolver.ToTreasury(context.Background(), "USDC", 2000000)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), minor)

	// Treasury-token invoices convert at rate 1.
	minor, rate, err = resolver.ToTreasury(context.Background(), "MNEE", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), minor)
	assert.Equal(t, 1.0, rate)

	_, _, err = resolver.ToTreasury(context.Background(), "EUR", 100)
	require.Error(t, err)

	// Conversion runs through float64; amounts past its 53-bit integer
	// range are rejected rather than silently losing minor units.
	_, _, err = resolver.ToTreasury(context.Background(), "MNEE", int64(1)<<53+1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// A USD amount inside the input bound would still overflow the
	// treasury side once scaled up by the decimals gap.
	_, _, err = resolver.ToTreasury(context.Background(), "USD", int64(1)<<53-1)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
