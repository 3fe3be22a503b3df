// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/luxfi/dutchx/pkg/auction"
	"github.com/luxfi/dutchx/pkg/funds"
	"github.com/luxfi/dutchx/pkg/ids"
	"github.com/luxfi/dutchx/pkg/log"
	"github.com/luxfi/dutchx/pkg/metric"
	"github.com/luxfi/dutchx/pkg/receipts"
)

// payoutCurrency is the cash-ledger currency withdrawals are paid in
const payoutCurrency = "usd"

// Deed is the asset auctioned over the HTTP surface: an opaque claim on
// whatever the URI points at.
type Deed struct {
	ID  ids.ID `json:"id"`
	URI string `json:"uri"`
}

// Server wires the auction registry to the HTTP API
type Server struct {
	registry *auction.Registry[Deed]
	journal  *receipts.Store
	payouts  *funds.Ledger
	metrics  *metric.Metrics
	hub      *eventHub
	log      log.Logger
}

// NewServer creates the API server
func NewServer(registry *auction.Registry[Deed], journal *receipts.Store, payouts *funds.Ledger, metrics *metric.Metrics, logger log.Logger) *Server {
	return &Server{
		registry: registry,
		journal:  journal,
		payouts:  payouts,
		metrics:  metrics,
		hub:      newEventHub(logger),
		log:      logger,
	}
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/auctions", s.handleList).Methods("POST")
	r.HandleFunc("/v1/auctions/{id}", s.handleQuote).Methods("GET")
	r.HandleFunc("/v1/auctions/{id}/buy", s.handleBuy).Methods("POST")
	r.HandleFunc("/v1/auctions/{id}", s.handleDelist).Methods("DELETE")
	r.HandleFunc("/v1/withdrawals", s.handleWithdraw).Methods("POST")
	r.HandleFunc("/v1/receipts/{id}", s.handleReceipt).Methods("GET")
	r.HandleFunc("/ws", s.handleEvents).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	return r
}

type listRequest struct {
	AssetID    string `json:"asset_id,omitempty"`
	AssetURI   string `json:"asset_uri"`
	TimeStart  uint64 `json:"time_start"`
	TimeEnd    uint64 `json:"time_end"`
	PriceStart uint64 `json:"price_start"`
	PriceEnd   uint64 `json:"price_end"`
	Seller     string `json:"seller"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	assetID := ids.FromName(req.AssetURI)
	if req.AssetID != "" {
		var err error
		assetID, err = ids.FromString(req.AssetID)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
	}

	deed := Deed{ID: assetID, URI: req.AssetURI}
	err := s.registry.List(assetID, deed, req.TimeStart, req.TimeEnd, req.PriceStart, req.PriceEnd, auction.Address(req.Seller))
	if err != nil {
		s.rejectOp(w, "list", err)
		return
	}

	s.metrics.ListingsCreated.Inc()
	s.metrics.OpenAuctions.Set(float64(s.registry.OpenAuctions()))
	s.hub.broadcast(marketEvent{
		Type:    "listed",
		AssetID: assetID.String(),
		Seller:  req.Seller,
	})

	writeJSON(w, http.StatusCreated, map[string]string{"asset_id": assetID.String()})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	assetID, err := ids.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	now := nowOrDefault(r.URL.Query().Get("now"))

	a, ok := s.registry.Auction(assetID)
	if !ok {
		s.rejectOp(w, "quote", auction.ErrNoSuchAuction)
		return
	}

	price, err := s.registry.Quote(assetID, now)
	if err != nil {
		s.rejectOp(w, "quote", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id":      assetID.String(),
		"seller":        a.Seller,
		"time_start":    a.TimeStart,
		"time_end":      a.TimeEnd,
		"price_start":   a.PriceStart,
		"price_end":     a.PriceEnd,
		"current_price": price,
	})
}

type buyRequest struct {
	Paid  uint64 `json:"paid"`
	Buyer string `json:"buyer"`
	Now   uint64 `json:"now,omitempty"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	assetID, err := ids.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	now := req.Now
	if now == 0 {
		now = uint64(time.Now().Unix())
	}

	a, ok := s.registry.Auction(assetID)
	if !ok {
		s.rejectOp(w, "buy", auction.ErrNoSuchAuction)
		return
	}
	sellerAddr := a.Seller

	start := time.Now()
	deed, err := s.registry.Buy(assetID, req.Paid, auction.Address(req.Buyer), now)
	if err != nil {
		s.rejectOp(w, "buy", err)
		return
	}
	s.metrics.SettleDuration.Observe(time.Since(start).Seconds())

	fee := req.Paid * s.registry.FeeBps() / 100
	receipt := &receipts.SaleReceipt{
		AssetID:      assetID.String(),
		Seller:       string(sellerAddr),
		Buyer:        req.Buyer,
		Paid:         req.Paid,
		Fee:          fee,
		SellerCredit: req.Paid - fee,
		ClearedAt:    now,
	}
	if err := s.journal.Record(receipt); err != nil {
		// The sale itself is committed; a journal failure is logged, not
		// surfaced as a settlement failure.
		s.log.Error("failed to record receipt", "asset", assetID, "error", err)
	}

	s.metrics.AuctionsSettled.Inc()
	s.metrics.VolumeSettled.Add(float64(req.Paid))
	s.metrics.FeesCollected.Add(float64(fee))
	s.metrics.OpenAuctions.Set(float64(s.registry.OpenAuctions()))
	s.hub.broadcast(marketEvent{
		Type:    "settled",
		AssetID: assetID.String(),
		Seller:  string(sellerAddr),
		Buyer:   req.Buyer,
		Amount:  req.Paid,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"deed":       deed,
		"receipt_id": receipt.ReceiptID,
		"paid":       req.Paid,
		"fee":        fee,
	})
}

type delistRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleDelist(w http.ResponseWriter, r *http.Request) {
	assetID, err := ids.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	var req delistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	deed, err := s.registry.Delist(assetID, auction.Address(req.Caller))
	if err != nil {
		s.rejectOp(w, "delist", err)
		return
	}

	s.metrics.Delistings.Inc()
	s.metrics.OpenAuctions.Set(float64(s.registry.OpenAuctions()))
	s.hub.broadcast(marketEvent{
		Type:    "delisted",
		AssetID: assetID.String(),
		Seller:  req.Caller,
	})

	writeJSON(w, http.StatusOK, map[string]any{"deed": deed})
}

type withdrawRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := s.registry.Withdraw(auction.Address(req.Address))
	if err != nil {
		s.rejectOp(w, "withdraw", err)
		return
	}

	// Move the proceeds onto the cash rail.
	if amount > 0 {
		if err := s.payouts.Deposit(payoutCurrency, req.Address, decimal.NewFromInt(int64(amount))); err != nil {
			s.log.Error("payout deposit failed", "address", req.Address, "amount", amount, "error", err)
		}
	}

	s.metrics.Withdrawals.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"address": req.Address,
		"amount":  amount,
		"balance": s.payouts.Balance(payoutCurrency, req.Address),
	})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.journal.Get(mux.Vars(r)["id"])
	if errors.Is(err, receipts.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.hub.add(conn)
	defer s.hub.remove(conn)

	// Consume until the client goes away; the feed is broadcast-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// rejectOp maps an engine error onto an HTTP status and counts it
func (s *Server) rejectOp(w http.ResponseWriter, op string, err error) {
	s.metrics.OpErrors.WithLabelValues(op, reasonLabel(err)).Inc()
	writeJSONError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auction.ErrNoSuchAuction), errors.Is(err, auction.ErrNoBalance):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrDuplicateListing), errors.Is(err, auction.ErrAuctionWindow), errors.Is(err, auction.ErrBalancePending):
		return http.StatusConflict
	case errors.Is(err, auction.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, auction.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrInvalidWindow), errors.Is(err, auction.ErrInvalidFee):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, auction.ErrDuplicateListing):
		return "duplicate_listing"
	case errors.Is(err, auction.ErrNoSuchAuction):
		return "no_such_auction"
	case errors.Is(err, auction.ErrAuctionWindow):
		return "window_violation"
	case errors.Is(err, auction.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, auction.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, auction.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, auction.ErrNoBalance):
		return "no_balance"
	case errors.Is(err, auction.ErrBalancePending):
		return "balance_pending"
	default:
		return "internal"
	}
}

func nowOrDefault(raw string) uint64 {
	if raw == "" {
		return uint64(time.Now().Unix())
	}
	now, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return uint64(time.Now().Unix())
	}
	return now
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// marketEvent is pushed to websocket subscribers on every state change
type marketEvent struct {
	Type    string `json:"type"`
	AssetID string `json:"asset_id"`
	Seller  string `json:"seller,omitempty"`
	Buyer   string `json:"buyer,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`
}

// eventHub fans market events out to websocket subscribers
type eventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   log.Logger
}

func newEventHub(logger log.Logger) *eventHub {
	return &eventHub{
		conns: make(map[*websocket.Conn]struct{}),
		log:   logger,
	}
}

func (h *eventHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
	conn.Close()
}

func (h *eventHub) broadcast(event marketEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			h.log.Debug("subscriber dropped", "error", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}
