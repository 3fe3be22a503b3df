package dutchxsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the dutchx API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new dutchx client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Listing describes an auction to open
type Listing struct {
	AssetID    string `json:"asset_id,omitempty"`
	AssetURI   string `json:"asset_uri"`
	TimeStart  uint64 `json:"time_start"`
	TimeEnd    uint64 `json:"time_end"`
	PriceStart uint64 `json:"price_start"`
	PriceEnd   uint64 `json:"price_end"`
	Seller     string `json:"seller"`
}

// Quote is the current state of a live auction
type Quote struct {
	AssetID      string `json:"asset_id"`
	Seller       string `json:"seller"`
	TimeStart    uint64 `json:"time_start"`
	TimeEnd      uint64 `json:"time_end"`
	PriceStart   uint64 `json:"price_start"`
	PriceEnd     uint64 `json:"price_end"`
	CurrentPrice uint64 `json:"current_price"`
}

// Deed is the asset released on a successful purchase or delisting
type Deed struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// Sale is the outcome of a settled purchase
type Sale struct {
	Deed      Deed   `json:"deed"`
	ReceiptID string `json:"receipt_id"`
	Paid      uint64 `json:"paid"`
	Fee       uint64 `json:"fee"`
}

// Receipt is the durable record of a settled sale
type Receipt struct {
	ReceiptID    string `json:"receipt_id"`
	AssetID      string `json:"asset_id"`
	Seller       string `json:"seller"`
	Buyer        string `json:"buyer"`
	Paid         uint64 `json:"paid"`
	Fee          uint64 `json:"fee"`
	SellerCredit uint64 `json:"seller_credit"`
	ClearedAt    uint64 `json:"cleared_at"`
}

// Payout is the result of a withdrawal
type Payout struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Event is pushed on the websocket feed for every market state change
type Event struct {
	Type    string `json:"type"`
	AssetID string `json:"asset_id"`
	Seller  string `json:"seller,omitempty"`
	Buyer   string `json:"buyer,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`
}

// List opens an auction and returns the asset id it was listed under
func (c *Client) List(ctx context.Context, listing *Listing) (string, error) {
	var out struct {
		AssetID string `json:"asset_id"`
	}
	err := c.do(ctx, "POST", "/v1/auctions", listing, &out, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return out.AssetID, nil
}

// Quote fetches the current ask price for an auction
func (c *Client) Quote(ctx context.Context, assetID string) (*Quote, error) {
	var out Quote
	err := c.do(ctx, "GET", "/v1/auctions/"+assetID, nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Buy settles an auction with the given payment
func (c *Client) Buy(ctx context.Context, assetID string, paid uint64, buyer string) (*Sale, error) {
	req := map[string]any{"paid": paid, "buyer": buyer}
	var out Sale
	err := c.do(ctx, "POST", "/v1/auctions/"+assetID+"/buy", req, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delist closes an auction and returns the escrowed deed to the seller
func (c *Client) Delist(ctx context.Context, assetID, caller string) (*Deed, error) {
	req := map[string]string{"caller": caller}
	var out struct {
		Deed Deed `json:"deed"`
	}
	err := c.do(ctx, "DELETE", "/v1/auctions/"+assetID, req, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out.Deed, nil
}

// Withdraw drains the caller's accumulated proceeds
func (c *Client) Withdraw(ctx context.Context, address string) (*Payout, error) {
	req := map[string]string{"address": address}
	var out Payout
	err := c.do(ctx, "POST", "/v1/withdrawals", req, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Receipt fetches the sale receipt recorded for an asset
func (c *Client) Receipt(ctx context.Context, assetID string) (*Receipt, error) {
	var out Receipt
	err := c.do(ctx, "GET", "/v1/receipts/"+assetID, nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubscribeEvents opens the websocket feed and delivers events on the
// returned channel until ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan Event, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, wantStatus int) error {
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewBuffer(data)
	} else {
		payload = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
