package settlement

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// MockAdapter settles instantly with a synthetic transaction hash.
type MockAdapter struct {
	mu       sync.Mutex
	failNext error
	delay    time.Duration
	settled  []Request
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// FailNext makes the next Settle call return err.
func (m *MockAdapter) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Delay makes every Settle call block for d before completing.
func (m *MockAdapter) Delay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Settled returns the requests settled so far, oldest first.
func (m *MockAdapter) Settled() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.settled))
	copy(out, m.settled)
	return out
}

func (m *MockAdapter) Settle(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	failNext := m.failNext
	m.failNext = nil
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if failNext != nil {
		return Result{}, failNext
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	buf := make([]byte, 32)
	_, _ = rand.Read(buf)

	m.mu.Lock()
	m.settled = append(m.settled, req)
	m.mu.Unlock()

	return Result{TxHash: "0x" + hex.EncodeToString(buf)}, nil
}
