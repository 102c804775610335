package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CreateOrderResponse is the destination's answer to an order creation. The
// executor validates that ID, Name and Meta.Href are all present before
// treating the creation as successful.
type CreateOrderResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Meta struct {
		Href string `json:"href"`
	} `json:"meta"`
}

// DestinationOrder is one order as listed by the destination system.
// ExternalCode carries the source-system order id for linked orders.
type DestinationOrder struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalCode string `json:"externalCode"`
	State        struct {
		Name string `json:"name"`
	} `json:"state"`
}

// StatusRef identifies one entry of the destination's status catalog.
type StatusRef struct {
	Name string
	Href string
}

// DestinationClient is the engine's view of the downstream order API.
type DestinationClient interface {
	CreateOrder(ctx context.Context, payload json.RawMessage) (*CreateOrderResponse, error)
	UpdateOrderStatus(ctx context.Context, orderID string, ref StatusRef) error
	ListRecentOrders(ctx context.Context, limit int) ([]DestinationOrder, error)
	StatusCatalog(ctx context.Context) ([]StatusRef, error)
}

// DestinationAPI talks to the destination order API over HTTP with bearer
// token auth.
type DestinationAPI struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewDestinationAPI(baseURL, token string, timeout time.Duration) *DestinationAPI {
	return &DestinationAPI{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *DestinationAPI) configured() *SyncError {
	if c.baseURL == "" || c.token == "" {
		return configErr("destination API credentials are not configured")
	}
	return nil
}

func (c *DestinationAPI) do(ctx context.Context, method, path string, body []byte) ([]byte, *SyncError) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, networkErr(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Encoding", "gzip")
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

func (c *DestinationAPI) CreateOrder(ctx context.Context, payload json.RawMessage) (*CreateOrderResponse, error) {
	raw, serr := c.do(ctx, http.MethodPost, "/entity/customerorder", payload)
	if serr != nil {
		return nil, serr
	}

	var created CreateOrderResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, &SyncError{Kind: FailureInvalidResponse, Message: "undecodable creation response", Err: err}
	}
	return &created, nil
}

func (c *DestinationAPI) UpdateOrderStatus(ctx context.Context, orderID string, ref StatusRef) error {
	body, err := json.Marshal(map[string]any{
		"state": map[string]any{
			"meta": map[string]any{
				"href":      ref.Href,
				"type":      "state",
				"mediaType": "application/json",
			},
		},
	})
	if err != nil {
		return networkErr(err)
	}

	if _, serr := c.do(ctx, http.MethodPut, "/entity/customerorder/"+orderID, body); serr != nil {
		return serr
	}
	return nil
}

func (c *DestinationAPI) ListRecentOrders(ctx context.Context, limit int) ([]DestinationOrder, error) {
	path := fmt.Sprintf("/entity/customerorder?limit=%d&order=updated,desc&expand=state", limit)
	raw, serr := c.do(ctx, http.MethodGet, path, nil)
	if serr != nil {
		return nil, serr
	}

	var page struct {
		Rows []DestinationOrder `json:"rows"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &SyncError{Kind: FailureInvalidResponse, Message: "undecodable order listing", Err: err}
	}
	return page.Rows, nil
}

func (c *DestinationAPI) StatusCatalog(ctx context.Context) ([]StatusRef, error) {
	raw, serr := c.do(ctx, http.MethodGet, "/entity/customerorder/metadata", nil)
	if serr != nil {
		return nil, serr
	}

	var meta struct {
		States []struct {
			Name string `json:"name"`
			Meta struct {
				Href string `json:"href"`
			} `json:"meta"`
		} `json:"states"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &SyncError{Kind: FailureInvalidResponse, Message: "undecodable status catalog", Err: err}
	}

	refs := make([]StatusRef, 0, len(meta.States))
	for _, s := range meta.States {
		refs = append(refs, StatusRef{Name: s.Name, Href: s.Meta.Href})
	}
	return refs, nil
}
