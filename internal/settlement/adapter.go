package settlement

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Request transfers Amount of Token to the provider's payment address.
type Request struct {
	PaymentID snowflake.ID
	InvoiceID string
	PayTo     string
	Token     string
	Amount    int64
	Network   string
}

// Result carries the transaction reference of the executed transfer.
type Result struct {
	TxHash string
}

// Adapter performs the final on-chain or off-chain transfer.
type Adapter interface {
	Settle(ctx context.Context, req Request) (Result, error)
}

var ErrSettlementFailed = errors.New("settlement_failed")
