// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"errors"
	"sync"

	"github.com/luxfi/dutchx/pkg/ids"
	"github.com/luxfi/dutchx/pkg/log"
)

var (
	ErrInvalidFee          = errors.New("fee percent out of range")
	ErrDuplicateListing    = errors.New("asset already listed")
	ErrNoSuchAuction       = errors.New("no auction for asset")
	ErrAuctionWindow       = errors.New("time outside auction window")
	ErrInvalidWindow       = errors.New("invalid auction window")
	ErrInsufficientPayment = errors.New("payment below current price")
	ErrNotOwner            = errors.New("caller is not the seller")
	ErrNoBalance           = errors.New("no balance to withdraw")
	ErrBalancePending      = errors.New("unwithdrawn balance pending")
	ErrSlotEmpty           = errors.New("escrow slot already released")
)

// Address identifies a party on the host ledger.
type Address string

// Registry is the shared state of the marketplace: the fee schedule, the
// book of open auctions, and the ledger of withdrawable sale proceeds.
// Every mutation goes through one of List, Buy, Delist, Withdraw, each of
// which either applies completely or leaves the registry untouched. A single
// mutex guards the whole aggregate; all state is reached through it.
type Registry[T any] struct {
	mu sync.Mutex

	feeBps            uint64 // percent of the paid amount, 0-100
	proceedsRecipient Address

	auctions map[ids.ID]*Auction[T]
	balances map[Address]uint64

	// legacyCredits reproduces the historical ledger behavior of rejecting
	// a credit to an address that has not yet withdrawn, instead of merging.
	legacyCredits bool

	log log.Logger
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger        log.Logger
	legacyCredits bool
}

// WithLogger sets the registry logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLegacyCreditPolicy makes Buy fail with ErrBalancePending when the
// seller or the proceeds recipient already holds an unwithdrawn balance,
// instead of accumulating the credit. Kept only for compatibility with the
// legacy ledger; new deployments should not enable it.
func WithLegacyCreditPolicy() Option {
	return func(o *options) { o.legacyCredits = true }
}

// NewRegistry creates the marketplace registry. feeBps is the platform's
// share of every payment in percent and must be in [0,100]; fee proceeds
// are credited to recipient.
func NewRegistry[T any](feeBps uint64, recipient Address, opts ...Option) (*Registry[T], error) {
	if feeBps > 100 {
		return nil, ErrInvalidFee
	}

	o := options{logger: log.NoLog}
	for _, opt := range opts {
		opt(&o)
	}

	return &Registry[T]{
		feeBps:            feeBps,
		proceedsRecipient: recipient,
		auctions:          make(map[ids.ID]*Auction[T]),
		balances:          make(map[Address]uint64),
		legacyCredits:     o.legacyCredits,
		log:               o.logger,
	}, nil
}

// List escrows item and opens an auction for it under assetID, asking
// priceStart at timeStart and decaying linearly to priceEnd at timeEnd.
// The caller becomes the seller. Fails with ErrDuplicateListing if assetID
// is already listed and ErrInvalidWindow if the window is empty or
// reversed; on failure the caller keeps the item.
func (r *Registry[T]) List(assetID ids.ID, item T, timeStart, timeEnd, priceStart, priceEnd uint64, seller Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timeEnd <= timeStart {
		return ErrInvalidWindow
	}
	if _, ok := r.auctions[assetID]; ok {
		// Replacing the entry would orphan the asset already in escrow.
		return ErrDuplicateListing
	}

	r.auctions[assetID] = &Auction[T]{
		Seller:     seller,
		TimeStart:  timeStart,
		TimeEnd:    timeEnd,
		PriceStart: priceStart,
		PriceEnd:   priceEnd,
		escrow:     newEscrowSlot(item),
	}

	r.log.Debug("asset listed",
		"asset", assetID,
		"seller", seller,
		"price_start", priceStart,
		"price_end", priceEnd)

	return nil
}

// Buy settles the auction for assetID at time now. The payment must cover
// the current ask price; the whole paid amount is then split into the
// platform fee (feeBps percent of paid, truncated) and the seller's credit,
// both accumulated in the proceeds ledger, and the asset is released to the
// buyer. Any overpayment above the ask price is split the same way, not
// refunded. On any failure nothing is mutated.
func (r *Registry[T]) Buy(assetID ids.ID, paid uint64, buyer Address, now uint64) (T, error) {
	var zero T

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[assetID]
	if !ok {
		return zero, ErrNoSuchAuction
	}
	if now < a.TimeStart || now > a.TimeEnd {
		return zero, ErrAuctionWindow
	}

	price, err := CurrentPrice(now, a.TimeStart, a.TimeEnd, a.PriceStart, a.PriceEnd)
	if err != nil {
		return zero, err
	}
	if paid < price {
		return zero, ErrInsufficientPayment
	}

	fee := paid * r.feeBps / 100
	sellerCredit := paid - fee

	if r.legacyCredits {
		if _, ok := r.balances[a.Seller]; ok {
			return zero, ErrBalancePending
		}
		if _, ok := r.balances[r.proceedsRecipient]; ok {
			return zero, ErrBalancePending
		}
	}

	// All preconditions hold; mutate.
	item, err := a.escrow.Release()
	if err != nil {
		return zero, err
	}
	delete(r.auctions, assetID)
	r.balances[a.Seller] += sellerCredit
	r.balances[r.proceedsRecipient] += fee

	r.log.Info("auction settled",
		"asset", assetID,
		"seller", a.Seller,
		"buyer", buyer,
		"paid", paid,
		"price", price,
		"fee", fee)

	return item, nil
}

// Delist closes the auction for assetID without any money movement and
// returns the escrowed asset to the caller. Only the seller may delist.
func (r *Registry[T]) Delist(assetID ids.ID, caller Address) (T, error) {
	var zero T

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[assetID]
	if !ok {
		return zero, ErrNoSuchAuction
	}
	if a.Seller != caller {
		return zero, ErrNotOwner
	}

	item, err := a.escrow.Release()
	if err != nil {
		return zero, err
	}
	delete(r.auctions, assetID)

	r.log.Debug("asset delisted", "asset", assetID, "seller", caller)

	return item, nil
}

// Withdraw drains the caller's accumulated proceeds. The ledger entry is
// removed; withdrawing again before a new credit fails with ErrNoBalance.
func (r *Registry[T]) Withdraw(caller Address) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	amount, ok := r.balances[caller]
	if !ok {
		return 0, ErrNoBalance
	}
	delete(r.balances, caller)

	r.log.Debug("balance withdrawn", "address", caller, "amount", amount)

	return amount, nil
}

// Quote returns the current ask price for assetID at time now.
func (r *Registry[T]) Quote(assetID ids.ID, now uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[assetID]
	if !ok {
		return 0, ErrNoSuchAuction
	}
	return CurrentPrice(now, a.TimeStart, a.TimeEnd, a.PriceStart, a.PriceEnd)
}

// Auction returns the live listing for assetID, if any. The returned record
// is a read-only view; mutations go through the registry operations.
func (r *Registry[T]) Auction(assetID ids.ID) (*Auction[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[assetID]
	return a, ok
}

// Balance returns the caller's withdrawable balance without draining it.
func (r *Registry[T]) Balance(addr Address) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	amount, ok := r.balances[addr]
	return amount, ok
}

// OpenAuctions returns the number of live listings.
func (r *Registry[T]) OpenAuctions() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.auctions)
}

// FeeBps returns the platform fee in percent of the paid amount.
func (r *Registry[T]) FeeBps() uint64 {
	return r.feeBps
}

// ProceedsRecipient returns the address credited with the platform fee.
func (r *Registry[T]) ProceedsRecipient() Address {
	return r.proceedsRecipient
}
