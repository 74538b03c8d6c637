package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// Ledger error definitions.
var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInvalidAmount       = errors.New("ledger: invalid amount")
	ErrDenomHalted         = errors.New("ledger: transfers halted for denom")
)

const feeBpsDenominator = 10_000

// MemoryLedger is an in-process TokenLedger keyed by (denom, holder). A
// per-denom transfer fee models fee-on-transfer assets: the fee portion is
// burned in flight, so the recipient receives less than the sender pays.
// Transfers for a denom can also be halted to simulate an upstream failure.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]sdkmath.Int
	feeBps   map[string]uint64
	halted   map[string]bool
}

// NewMemoryLedger creates an empty in-memory token ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]map[string]sdkmath.Int),
		feeBps:   make(map[string]uint64),
		halted:   make(map[string]bool),
	}
}

// Mint credits newly created units of denom to holder.
func (l *MemoryLedger) Mint(denom, holder string, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(denom, holder, amount)
}

// SetTransferFee configures a transfer fee in basis points for denom. The
// fee is deducted in flight and never delivered to the recipient.
func (l *MemoryLedger) SetTransferFee(denom string, bps uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bps > feeBpsDenominator {
		bps = feeBpsDenominator
	}
	l.feeBps[denom] = bps
}

// SetHalted toggles transfer failures for denom.
func (l *MemoryLedger) SetHalted(denom string, halted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.halted[denom] = halted
}

func (l *MemoryLedger) TransferIn(ctx context.Context, denom, from, to string, amount sdkmath.Int) (sdkmath.Int, error) {
	_, received, err := l.transfer(denom, from, to, amount)
	return received, err
}

func (l *MemoryLedger) TransferOut(ctx context.Context, denom, from, to string, amount sdkmath.Int) (sdkmath.Int, error) {
	debited, _, err := l.transfer(denom, from, to, amount)
	return debited, err
}

func (l *MemoryLedger) BalanceOf(ctx context.Context, denom, holder string) (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(denom, holder), nil
}

// transfer debits the full amount from the sender and credits the post-fee
// remainder to the recipient.
func (l *MemoryLedger) transfer(denom, from, to string, amount sdkmath.Int) (debited, received sdkmath.Int, err error) {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted[denom] {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrDenomHalted, denom)
	}
	if amount.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	bal := l.balance(denom, from)
	if bal.LT(amount) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %s has %s %s, need %s",
			ErrInsufficientBalance, from, bal.String(), denom, amount.String())
	}

	received = amount
	if bps := l.feeBps[denom]; bps > 0 {
		fee := amount.MulRaw(int64(bps)).QuoRaw(feeBpsDenominator)
		received = amount.Sub(fee)
	}

	l.balances[denom][from] = bal.Sub(amount)
	l.credit(denom, to, received)
	return amount, received, nil
}

func (l *MemoryLedger) balance(denom, holder string) sdkmath.Int {
	if holders, ok := l.balances[denom]; ok {
		if bal, ok := holders[holder]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

func (l *MemoryLedger) credit(denom, holder string, amount sdkmath.Int) {
	holders, ok := l.balances[denom]
	if !ok {
		holders = make(map[string]sdkmath.Int)
		l.balances[denom] = holders
	}
	if bal, ok := holders[holder]; ok {
		holders[holder] = bal.Add(amount)
	} else {
		holders[holder] = amount
	}
}
