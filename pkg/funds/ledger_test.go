package funds

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLedgerDepositAndTransfer(t *testing.T) {
	require := require.New(t)

	ledger := NewLedger()
	require.NoError(ledger.Deposit("usd", "alice", decimal.NewFromInt(1000)))

	err := ledger.Transfer("usd", "alice", "bob", decimal.NewFromInt(150))
	require.NoError(err)

	require.True(ledger.Balance("usd", "alice").Equal(decimal.NewFromInt(850)))
	require.True(ledger.Balance("usd", "bob").Equal(decimal.NewFromInt(150)))
}

func TestLedgerInsufficientFunds(t *testing.T) {
	require := require.New(t)

	ledger := NewLedger()
	require.NoError(ledger.Deposit("usd", "alice", decimal.NewFromInt(100)))

	err := ledger.Transfer("usd", "alice", "bob", decimal.NewFromInt(101))
	require.ErrorIs(err, ErrInsufficientFunds)

	err = ledger.Transfer("usd", "carol", "bob", decimal.NewFromInt(1))
	require.ErrorIs(err, ErrInsufficientFunds)

	// Failed transfers move nothing.
	require.True(ledger.Balance("usd", "alice").Equal(decimal.NewFromInt(100)))
	require.True(ledger.Balance("usd", "bob").IsZero())
}

func TestLedgerRejectsNonPositive(t *testing.T) {
	require := require.New(t)

	ledger := NewLedger()
	require.ErrorIs(ledger.Deposit("usd", "alice", decimal.Zero), ErrNonPositiveAmount)
	require.ErrorIs(ledger.Transfer("usd", "a", "b", decimal.NewFromInt(-5)), ErrNonPositiveAmount)
}

func TestSplitConservation(t *testing.T) {
	require := require.New(t)

	amount := decimal.NewFromInt(150)
	fee, rest, err := Split(amount, decimal.NewFromInt(7))
	require.NoError(err)
	require.True(fee.Add(rest).Equal(amount))
	require.True(rest.Equal(decimal.NewFromInt(143)))

	_, _, err = Split(amount, decimal.NewFromInt(151))
	require.ErrorIs(err, ErrBadSplit)

	_, _, err = Split(amount, decimal.NewFromInt(-1))
	require.ErrorIs(err, ErrBadSplit)
}
