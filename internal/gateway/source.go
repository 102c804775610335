package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// Metadata keys written onto source orders at link-back time. These are the
// well-known fields later reconciliation sweeps (and humans) use to find the
// destination-side counterpart of a source order.
const (
	MetaDestinationID     = "_destination_order_id"
	MetaDestinationNumber = "_destination_order_number"
)

// MetaField is one key/value metadata entry attached to a source order.
type MetaField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SourceOrder is one order as exposed by the source system.
type SourceOrder struct {
	ID       int64       `json:"id"`
	Number   string      `json:"number"`
	Status   string      `json:"status"`
	MetaData []MetaField `json:"meta_data"`
}

// Meta returns the value of a metadata field, or "" when absent.
func (o *SourceOrder) Meta(key string) string {
	for _, f := range o.MetaData {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// SourceClient is the engine's view of the order-originating system.
// Metadata writes are idempotent on the source side and safe to repeat.
type SourceClient interface {
	GetOrder(ctx context.Context, orderID int64) (*SourceOrder, error)
	UpdateOrderMetadata(ctx context.Context, orderID int64, number string, fields map[string]string) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	ListRecentOrders(ctx context.Context, limit int) ([]SourceOrder, error)
}

// SourceAPI talks to the source order API over HTTP with basic auth
// (consumer key / consumer secret pair).
type SourceAPI struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	hc             *http.Client
}

func NewSourceAPI(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *SourceAPI {
	return &SourceAPI{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		hc:             &http.Client{Timeout: timeout},
	}
}

func (c *SourceAPI) do(ctx context.Context, method, path string, body []byte) ([]byte, *SyncError) {
	if c.baseURL == "" || c.consumerKey == "" || c.consumerSecret == "" {
		return nil, configErr("source API credentials are not configured")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, networkErr(err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, networkErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkErr(err)
	}
	if resp.StatusCode >= 400 {
		return nil, serverErr(resp.StatusCode, string(raw))
	}
	return raw, nil
}

func (c *SourceAPI) GetOrder(ctx context.Context, orderID int64) (*SourceOrder, error) {
	raw, serr := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil)
	if serr != nil {
		return nil, serr
	}

	var order SourceOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, &SyncError{Kind: FailureInvalidResponse, Message: "undecodable order", Err: err}
	}
	return &order, nil
}

func (c *SourceAPI) UpdateOrderMetadata(ctx context.Context, orderID int64, number string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	meta := make([]MetaField, 0, len(fields))
	for _, k := range keys {
		meta = append(meta, MetaField{Key: k, Value: fields[k]})
	}

	payload := map[string]any{"meta_data": meta}
	if number != "" {
		payload["number"] = number
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return networkErr(err)
	}

	if _, serr := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", orderID), body); serr != nil {
		return serr
	}
	return nil
}

func (c *SourceAPI) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return networkErr(err)
	}

	if _, serr := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", orderID), body); serr != nil {
		return serr
	}
	return nil
}

func (c *SourceAPI) ListRecentOrders(ctx context.Context, limit int) ([]SourceOrder, error) {
	path := fmt.Sprintf("/orders?orderby=modified&per_page=%d", limit)
	raw, serr := c.do(ctx, http.MethodGet, path, nil)
	if serr != nil {
		return nil, serr
	}

	var orders []SourceOrder
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, &SyncError{Kind: FailureInvalidResponse, Message: "undecodable order listing", Err: err}
	}
	return orders, nil
}
