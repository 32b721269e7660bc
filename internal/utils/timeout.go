package utils

import (
	"context"
	"time"
)

const (
	DefaultDBTimeout = 5 * time.Second
	// Checkout and cancellation transactions touch several tables; they get
	// more room than a single-statement query.
	TxTimeout = 10 * time.Second
)

func WithDBTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultDBTimeout)
}

func WithTxTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, TxTimeout)
}
