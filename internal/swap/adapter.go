package swap

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Request asks an external venue to convert sellAmount of SellToken into
// BuyToken on behalf of a workspace treasury.
type Request struct {
	WorkspaceID snowflake.ID
	SellToken   string
	SellAmount  int64
	BuyToken    string
}

// Result reports the executed conversion. Reversible indicates whether the
// venue can unwind this execution; irreversible swaps that later need
// compensation are escalated for manual reconciliation instead.
type Result struct {
	SellToken  string
	SellAmount int64
	BuyToken   string
	BuyAmount  int64
	Fee        int64
	TxHash     string
	Reversible bool
}

// Adapter is the external swap venue.
type Adapter interface {
	Swap(ctx context.Context, req Request) (Result, error)
	Reverse(ctx context.Context, executed Result) error
}

var (
	ErrSwapFailed    = errors.New("swap_failed")
	ErrNotReversible = errors.New("swap_not_reversible")
)
