package swap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"
	"sync"

	"github.com/tollgate-ai/tollgate/internal/rates"
)

// MockAdapter executes swaps against the static rate table, charging a fixed
// fee in basis points. Used in development and tests; executions are
// all-or-nothing.
type MockAdapter struct {
	source rates.Source
	feeBps int64

	mu         sync.Mutex
	failNext   error
	reversible bool
	reversed   []string
}

func NewMockAdapter(source rates.Source, feeBps int64, reversible bool) *MockAdapter {
	return &MockAdapter{
		source:     source,
		feeBps:     feeBps,
		reversible: reversible,
	}
}

// FailNext makes the next Swap call return err.
func (m *MockAdapter) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Reversed returns tx hashes of reversed swaps, oldest first.
func (m *MockAdapter) Reversed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.reversed))
	copy(out, m.reversed)
	return out
}

func (m *MockAdapter) Swap(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	failNext := m.failNext
	m.failNext = nil
	reversible := m.reversible
	m.mu.Unlock()

	if failNext != nil {
		return Result{}, failNext
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rate, err := m.source.Rate(ctx, req.SellToken, req.BuyToken)
	if err != nil {
		return Result{}, err
	}

	sellDecimals, err := rates.Decimals(req.SellToken)
	if err != nil {
		return Result{}, err
	}
	buyDecimals, err := rates.Decimals(req.BuyToken)
	if err != nil {
		return Result{}, err
	}

	gross := float64(req.SellAmount) * rate * math.Pow10(buyDecimals-sellDecimals)
	fee := int64(math.Round(gross * float64(m.feeBps) / 10000))
	buyAmount := int64(math.Round(gross)) - fee
	if buyAmount <= 0 {
		return Result{}, ErrSwapFailed
	}

	return Result{
		SellToken:  req.SellToken,
		SellAmount: req.SellAmount,
		BuyToken:   req.BuyToken,
		BuyAmount:  buyAmount,
		Fee:        fee,
		TxHash:     newTxHash(),
		Reversible: reversible,
	}, nil
}

func (m *MockAdapter) Reverse(ctx context.Context, executed Result) error {
	if !executed.Reversible {
		return ErrNotReversible
	}
	m.mu.Lock()
	m.reversed = append(m.reversed, executed.TxHash)
	m.mu.Unlock()
	return nil
}

func newTxHash() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return "0x" + hex.EncodeToString(buf)
}
