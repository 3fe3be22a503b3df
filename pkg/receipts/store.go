// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receipts

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/luxfi/dutchx/pkg/log"
)

// ErrNotFound is returned when no receipt exists for an asset
var ErrNotFound = errors.New("receipt not found")

var salePrefix = []byte("sale/")

// SaleReceipt is the durable record of one settled auction
type SaleReceipt struct {
	ReceiptID    string `json:"receipt_id"`
	AssetID      string `json:"asset_id"`
	Seller       string `json:"seller"`
	Buyer        string `json:"buyer"`
	Paid         uint64 `json:"paid"`
	Fee          uint64 `json:"fee"`
	SellerCredit uint64 `json:"seller_credit"`
	ClearedAt    uint64 `json:"cleared_at"`
}

// Store is the sale-receipt journal backed by badger
type Store struct {
	db  *badger.DB
	log log.Logger
}

// Open creates a receipt store at path
func Open(path string, logger log.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: logger}, nil
}

// OpenInMemory creates an ephemeral receipt store for tests and dev mode
func OpenInMemory(logger log.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: logger}, nil
}

// Record persists the receipt, assigning a receipt id if it has none
func (s *Store) Record(r *SaleReceipt) error {
	if r.ReceiptID == "" {
		r.ReceiptID = uuid.New().String()
	}

	value, err := json.Marshal(r)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(saleKey(r.AssetID), value)
	})
	if err != nil {
		return err
	}

	s.log.Debug("receipt recorded", "receipt", r.ReceiptID, "asset", r.AssetID)
	return nil
}

// Get returns the receipt for an asset id
func (s *Store) Get(assetID string) (*SaleReceipt, error) {
	var r SaleReceipt

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(saleKey(assetID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &r)
		})
	})
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// List returns all recorded receipts
func (s *Store) List() ([]*SaleReceipt, error) {
	var out []*SaleReceipt

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = salePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(salePrefix); it.ValidForPrefix(salePrefix); it.Next() {
			var r SaleReceipt
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &r)
			})
			if err != nil {
				return err
			}
			out = append(out, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func saleKey(assetID string) []byte {
	return append(append([]byte{}, salePrefix...), assetID...)
}
