package rates

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"
)

var ErrNoRate = errors.New("no_rate_for_pair")

// Source supplies a conversion rate: units of `to` per one unit of `from`.
type Source interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// StaticSource resolves rates from a fixed table, keyed "FROM/TO".
// The inverse pair is derived when only one direction is configured.
type StaticSource struct {
	rates map[string]float64
}

func NewStaticSource(rates map[string]float64) *StaticSource {
	table := make(map[string]float64, len(rates))
	for pair, rate := range rates {
		table[strings.ToUpper(pair)] = rate
	}
	return &StaticSource{rates: table}
}

func (s *StaticSource) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1, nil
	}
	if rate, ok := s.rates[from+"/"+to]; ok {
		return rate, nil
	}
	if inverse, ok := s.rates[to+"/"+from]; ok && inverse > 0 {
		return 1 / inverse, nil
	}
	return 0, ErrNoRate
}

// Resolver converts provider-priced amounts into treasury-token minor units.
type Resolver struct {
	log           *zap.Logger
	source        Source
	treasuryToken string
}

func NewResolver(log *zap.Logger, source Source, treasuryToken string) *Resolver {
	return &Resolver{
		log:           log.Named("rates.resolver"),
		source:        source,
		treasuryToken: strings.ToUpper(treasuryToken),
	}
}

func (r *Resolver) TreasuryToken() string {
	return r.treasuryToken
}

// ToTreasury converts minor units of `currency` into treasury-token minor
// units, returning the converted amount and the applied rate.
func (r *Resolver) ToTreasury(ctx context.Context, currency string, minor int64) (int64, float64, error) {
	rate, err := r.source.Rate(ctx, currency, r.treasuryToken)
	if err != nil {
		return 0, 0, err
	}

	fromDecimals, err := Decimals(currency)
	if err != nil {
		return 0, 0, err
	}
	toDecimals, err := Decimals(r.treasuryToken)
	if err != nil {
		return 0, 0, err
	}

	// The conversion runs through float64, which holds 53 bits of integer
	// precision. Amounts beyond that would silently lose minor units, so
	// they are rejected on both sides of the conversion.
	const maxExact = int64(1) << 53
	if minor > maxExact {
		return 0, 0, ErrInvalidAmount
	}
	converted := float64(minor) * rate * math.Pow10(toDecimals-fromDecimals)
	if converted < 0 || converted >= float64(maxExact) {
		return 0, 0, ErrInvalidAmount
	}
	return int64(math.Round(converted)), rate, nil
}
