package service

import (
	"context"

	"member-core/internal/reserve"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainClient is the slice of the RPC node the scanner needs.
// *ethclient.Client satisfies it.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// ReserveClient is the custody service the sweep coordinator dispatches to.
// *reserve.Client satisfies it.
type ReserveClient interface {
	Sweep(ctx context.Context, req *reserve.SweepRequest) (*reserve.SweepResponse, error)
}

// PaymentIntentInfo is what the web layer gets back for a new purchase.
type PaymentIntentInfo struct {
	PaymentID      uint64 `json:"payment_id"`
	DepositAddress string `json:"deposit_address"`
	AmountUsdCents int64  `json:"amount_usd_cents"`
	Chain          string `json:"chain"`
}

// PaymentProvider creates purchase intents and reports their progress.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, userID uint64, tier string) (*PaymentIntentInfo, error)
	GetPaymentStatus(ctx context.Context, paymentID, userID uint64) (*PaymentStatusSnapshot, error)
}
