package funds

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBadSplit          = errors.New("split exceeds amount")
)

// Ledger tracks cash balances per currency and account. It is the host-side
// money rail the auction engine settles against: marketplace proceeds are
// paid out of escrow into these accounts.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]map[string]decimal.Decimal // currency -> account -> balance
}

// NewLedger creates an empty cash ledger
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]map[string]decimal.Decimal),
	}
}

// Deposit credits an account
func (l *Ledger) Deposit(currency, account string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[currency] == nil {
		l.balances[currency] = make(map[string]decimal.Decimal)
	}
	l.balances[currency][account] = l.balances[currency][account].Add(amount)

	return nil
}

// Transfer moves an amount between accounts
func (l *Ledger) Transfer(currency, from, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[currency] == nil {
		l.balances[currency] = make(map[string]decimal.Decimal)
	}

	fromBalance, exists := l.balances[currency][from]
	if !exists || fromBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	l.balances[currency][from] = fromBalance.Sub(amount)
	l.balances[currency][to] = l.balances[currency][to].Add(amount)

	return nil
}

// Balance returns the balance for an account
func (l *Ledger) Balance(currency, account string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.balances[currency] == nil {
		return decimal.Zero
	}
	return l.balances[currency][account]
}

// Split cuts sub out of amount and returns both parts. The parts always sum
// back to amount exactly; no value is created or destroyed.
func Split(amount, sub decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if sub.IsNegative() || sub.GreaterThan(amount) {
		return decimal.Zero, decimal.Zero, ErrBadSplit
	}
	return sub, amount.Sub(sub), nil
}
