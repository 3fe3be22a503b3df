// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

// EscrowSlot is a one-asset custody cell. It is created holding its asset
// and releases it exactly once; a slot cannot be refilled or reused.
type EscrowSlot[T any] struct {
	item T
	held bool
}

func newEscrowSlot[T any](item T) *EscrowSlot[T] {
	return &EscrowSlot[T]{item: item, held: true}
}

// Release moves the asset out of the slot. A second release fails with
// ErrSlotEmpty.
func (s *EscrowSlot[T]) Release() (T, error) {
	var zero T
	if !s.held {
		return zero, ErrSlotEmpty
	}
	item := s.item
	s.item = zero
	s.held = false
	return item, nil
}

// Held reports whether the slot still holds its asset.
func (s *EscrowSlot[T]) Held() bool {
	return s.held
}

// Auction is a single listing: the seller, the pricing schedule, and the
// escrow slot holding the asset for sale. An auction lives in the registry's
// book under its asset id exactly as long as its slot holds the asset; the
// two are created and discarded together.
type Auction[T any] struct {
	Seller     Address
	TimeStart  uint64
	TimeEnd    uint64
	PriceStart uint64
	PriceEnd   uint64

	escrow *EscrowSlot[T]
}

// Escrowed reports whether the auctioned asset is still in custody.
func (a *Auction[T]) Escrowed() bool {
	return a.escrow.Held()
}
