// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"sync"
	"testing"

	"github.com/luxfi/dutchx/pkg/ids"
	"github.com/luxfi/dutchx/pkg/log"
	"github.com/stretchr/testify/require"
)

const (
	seller   = Address("seller")
	buyer    = Address("buyer")
	platform = Address("platform")
	stranger = Address("stranger")
)

func newTestRegistry(t *testing.T, opts ...Option) *Registry[string] {
	t.Helper()
	opts = append(opts, WithLogger(log.NoOp()))
	reg, err := NewRegistry[string](5, platform, opts...)
	require.NoError(t, err)
	return reg
}

func TestNewRegistryFeeRange(t *testing.T) {
	require := require.New(t)

	_, err := NewRegistry[string](101, platform)
	require.ErrorIs(err, ErrInvalidFee)

	reg, err := NewRegistry[string](100, platform)
	require.NoError(err)
	require.Equal(uint64(100), reg.FeeBps())
	require.Equal(platform, reg.ProceedsRecipient())
}

func TestListAndQuote(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	err := reg.List(id, "deed-1", 1000, 2000, 200, 100, seller)
	require.NoError(err)

	a, ok := reg.Auction(id)
	require.True(ok)
	require.Equal(seller, a.Seller)
	require.True(a.Escrowed())

	price, err := reg.Quote(id, 1500)
	require.NoError(err)
	require.Equal(uint64(150), price)

	_, err = reg.Quote(ids.GenerateTestID(), 1500)
	require.ErrorIs(err, ErrNoSuchAuction)
}

func TestListDuplicate(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	err := reg.List(id, "deed-2", 3000, 4000, 500, 50, stranger)
	require.ErrorIs(err, ErrDuplicateListing)

	// The first listing is untouched and its asset still escrowed.
	a, ok := reg.Auction(id)
	require.True(ok)
	require.Equal(seller, a.Seller)
	require.Equal(uint64(2000), a.TimeEnd)
	require.True(a.Escrowed())
}

func TestListInvalidWindow(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)

	err := reg.List(ids.GenerateTestID(), "deed", 2000, 1000, 200, 100, seller)
	require.ErrorIs(err, ErrInvalidWindow)

	err = reg.List(ids.GenerateTestID(), "deed", 1000, 1000, 200, 100, seller)
	require.ErrorIs(err, ErrInvalidWindow)

	require.Zero(reg.OpenAuctions())
}

func TestBuySettlement(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	item, err := reg.Buy(id, 150, buyer, 1500)
	require.NoError(err)
	require.Equal("deed-1", item)

	// 5% of 150, truncated.
	fee, ok := reg.Balance(platform)
	require.True(ok)
	require.Equal(uint64(7), fee)

	credit, ok := reg.Balance(seller)
	require.True(ok)
	require.Equal(uint64(143), credit)
	require.Equal(uint64(150), credit+fee)

	_, ok = reg.Auction(id)
	require.False(ok)
}

func TestBuyOverpaySplitsWholePayment(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	// Ask price is 150; the fee is a share of the full 200 paid, and the
	// overpayment goes to the seller, not back to the buyer.
	_, err := reg.Buy(id, 200, buyer, 1500)
	require.NoError(err)

	fee, _ := reg.Balance(platform)
	require.Equal(uint64(10), fee)

	credit, _ := reg.Balance(seller)
	require.Equal(uint64(190), credit)
}

func TestBuyInsufficientPayment(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	_, err := reg.Buy(id, 120, buyer, 1500)
	require.ErrorIs(err, ErrInsufficientPayment)

	// Nothing moved.
	a, ok := reg.Auction(id)
	require.True(ok)
	require.True(a.Escrowed())
	_, ok = reg.Balance(seller)
	require.False(ok)
	_, ok = reg.Balance(platform)
	require.False(ok)
}

func TestBuyOutsideWindow(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	_, err := reg.Buy(id, 500, buyer, 999)
	require.ErrorIs(err, ErrAuctionWindow)

	_, err = reg.Buy(id, 500, buyer, 2001)
	require.ErrorIs(err, ErrAuctionWindow)

	a, ok := reg.Auction(id)
	require.True(ok)
	require.True(a.Escrowed())
}

func TestBuyNoSuchAuction(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)

	_, err := reg.Buy(ids.GenerateTestID(), 500, buyer, 1500)
	require.ErrorIs(err, ErrNoSuchAuction)
}

func TestCreditsAccumulate(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)

	idA := ids.GenerateTestID()
	idB := ids.GenerateTestID()
	require.NoError(reg.List(idA, "deed-a", 1000, 2000, 200, 100, seller))
	require.NoError(reg.List(idB, "deed-b", 1000, 2000, 400, 200, seller))

	_, err := reg.Buy(idA, 150, buyer, 1500)
	require.NoError(err)
	_, err = reg.Buy(idB, 300, buyer, 1500)
	require.NoError(err)

	// Two sales before any withdrawal merge into one balance:
	// (150-7) + (300-15) = 428.
	credit, ok := reg.Balance(seller)
	require.True(ok)
	require.Equal(uint64(428), credit)

	fee, ok := reg.Balance(platform)
	require.True(ok)
	require.Equal(uint64(22), fee)
}

func TestLegacyCreditPolicy(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t, WithLegacyCreditPolicy())

	idA := ids.GenerateTestID()
	idB := ids.GenerateTestID()
	require.NoError(reg.List(idA, "deed-a", 1000, 2000, 200, 100, seller))
	require.NoError(reg.List(idB, "deed-b", 1000, 2000, 400, 200, seller))

	_, err := reg.Buy(idA, 150, buyer, 1500)
	require.NoError(err)

	// Second credit before withdrawal is rejected, and the rejected sale
	// leaves its auction fully intact.
	_, err = reg.Buy(idB, 300, buyer, 1500)
	require.ErrorIs(err, ErrBalancePending)

	a, ok := reg.Auction(idB)
	require.True(ok)
	require.True(a.Escrowed())

	credit, _ := reg.Balance(seller)
	require.Equal(uint64(143), credit)

	// After withdrawal the next sale goes through.
	_, err = reg.Withdraw(seller)
	require.NoError(err)
	_, err = reg.Withdraw(platform)
	require.NoError(err)

	_, err = reg.Buy(idB, 300, buyer, 1500)
	require.NoError(err)
}

func TestSellerIsProceedsRecipient(t *testing.T) {
	require := require.New(t)
	reg, err := NewRegistry[string](5, seller, WithLogger(log.NoOp()))
	require.NoError(err)

	id := ids.GenerateTestID()
	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	_, err = reg.Buy(id, 150, buyer, 1500)
	require.NoError(err)

	// Credit and fee merge into the one address; nothing is lost.
	balance, ok := reg.Balance(seller)
	require.True(ok)
	require.Equal(uint64(150), balance)
}

func TestDelist(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))

	_, err := reg.Delist(id, stranger)
	require.ErrorIs(err, ErrNotOwner)

	a, ok := reg.Auction(id)
	require.True(ok)
	require.True(a.Escrowed())

	item, err := reg.Delist(id, seller)
	require.NoError(err)
	require.Equal("deed-1", item)

	_, ok = reg.Auction(id)
	require.False(ok)

	_, err = reg.Delist(id, seller)
	require.ErrorIs(err, ErrNoSuchAuction)
}

func TestWithdraw(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)
	id := ids.GenerateTestID()

	require.NoError(reg.List(id, "deed-1", 1000, 2000, 200, 100, seller))
	_, err := reg.Buy(id, 150, buyer, 1500)
	require.NoError(err)

	amount, err := reg.Withdraw(seller)
	require.NoError(err)
	require.Equal(uint64(143), amount)

	// Entry is gone until the next credit.
	_, err = reg.Withdraw(seller)
	require.ErrorIs(err, ErrNoBalance)

	_, err = reg.Withdraw(stranger)
	require.ErrorIs(err, ErrNoBalance)
}

func TestConcurrentSettlement(t *testing.T) {
	require := require.New(t)
	reg := newTestRegistry(t)

	const n = 64
	assetIDs := make([]ids.ID, n)
	for i := range assetIDs {
		assetIDs[i] = ids.GenerateTestID()
		require.NoError(reg.List(assetIDs[i], "deed", 1000, 2000, 200, 100, seller))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range assetIDs {
		wg.Add(1)
		go func(id ids.ID) {
			defer wg.Done()
			_, err := reg.Buy(id, 150, buyer, 1500)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	require.Zero(reg.OpenAuctions())

	// Value conservation across all sales: n * 150 split 143/7.
	credit, _ := reg.Balance(seller)
	fee, _ := reg.Balance(platform)
	require.Equal(uint64(n*150), credit+fee)
	require.Equal(uint64(n*7), fee)
}

func BenchmarkBuy(b *testing.B) {
	reg, _ := NewRegistry[string](5, platform, WithLogger(log.NoOp()))
	assetIDs := make([]ids.ID, b.N)
	for i := range assetIDs {
		assetIDs[i] = ids.GenerateTestID()
		reg.List(assetIDs[i], "deed", 1000, 2000, 200, 100, seller)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		reg.Buy(assetIDs[i], 150, buyer, 1500)
	}
}
