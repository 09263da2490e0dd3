package rates

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Token decimals for currencies the gateway understands. Amounts are carried
// as int64 minor units everywhere; the registry is the only place that parses
// or formats decimal strings.
var tokenDecimals = map[string]int{
	"MNEE": 5,
	"USDC": 6,
	"USDT": 6,
	"USD":  2,
	"BSV":  8,
}

var (
	ErrUnknownToken    = errors.New("unknown_token")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrAmountPrecision = errors.New("amount_precision_exceeded")
)

// Decimals returns the minor-unit exponent for a token symbol.
func Decimals(symbol string) (int, error) {
	d, ok := tokenDecimals[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return 0, ErrUnknownToken
	}
	return d, nil
}

// ParseAmount converts a decimal string into minor units for the given token.
// More fractional digits than the token supports is an error, not a rounding.
func ParseAmount(symbol, value string) (int64, error) {
	decimals, err := Decimals(symbol)
	if err != nil {
		return 0, err
	}

	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "-") {
		return 0, ErrInvalidAmount
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return 0, ErrAmountPrecision
	}
	frac += strings.Repeat("0", decimals-len(frac))

	wholePart, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	var fracPart int64
	if frac != "" {
		fracPart, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
	}

	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	// Scaling must not wrap around int64; a value that large is not a
	// payable amount.
	if wholePart > (math.MaxInt64-fracPart)/scale {
		return 0, ErrInvalidAmount
	}
	return wholePart*scale + fracPart, nil
}

// FormatAmount renders minor units as a decimal string for the given token.
func FormatAmount(symbol string, minor int64) string {
	decimals, err := Decimals(symbol)
	if err != nil || decimals == 0 {
		return strconv.FormatInt(minor, 10)
	}
	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%d.%0*d", minor/scale, decimals, minor%scale)
}
