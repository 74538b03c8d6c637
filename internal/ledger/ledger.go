package ledger

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// TokenLedger abstracts the fungible-asset transfer primitive used for both
// the deposit asset and the reward asset. Implementations may deliver less
// than the requested amount (fee-on-transfer assets) or fail outright, so
// callers must never assume the returned actual amount equals the request
// and should measure balance deltas for any pull.
type TokenLedger interface {
	// TransferIn pulls amount of denom from a user account into a pool
	// account and returns the amount actually received by the recipient.
	TransferIn(ctx context.Context, denom, from, to string, amount sdkmath.Int) (sdkmath.Int, error)

	// TransferOut pushes amount of denom from a pool account to a recipient
	// and returns the amount actually debited from the sender.
	TransferOut(ctx context.Context, denom, from, to string, amount sdkmath.Int) (sdkmath.Int, error)

	// BalanceOf returns the current balance of denom held by holder.
	BalanceOf(ctx context.Context, denom, holder string) (sdkmath.Int, error)
}
