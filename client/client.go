// Package client provides a REST client for the shop API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Moriyan1307/misprint-demo/errors"
	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/service"
)

// Ensure Client implements service.ShopService
var _ service.ShopService = (*Client)(nil)

// Client is an HTTP client for the shop REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// SSE state
	sseManager *sseManager
}

// New creates a new shop REST client.
func New(baseURL string, opts ...Option) *Client {
	// Remove trailing slash
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	// Initialize SSE manager
	c.sseManager = newSSEManager(c)

	return c
}

// Purchase attempts to buy one unit of an item.
func (c *Client) Purchase(ctx context.Context, itemID string) (*models.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/buy/"+itemID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to purchase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var buyResp struct {
		Message   string    `json:"message"`
		ItemID    string    `json:"item_id"`
		OrderID   string    `json:"order_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&buyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &models.Order{
		OrderID:   buyResp.OrderID,
		ItemID:    buyResp.ItemID,
		CreatedAt: buyResp.CreatedAt,
	}, nil
}

// Status retrieves the current state of an item.
func (c *Client) Status(ctx context.Context, itemID string) (*models.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+itemID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var item models.Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &item, nil
}

// Items retrieves all items.
func (c *Client) Items(ctx context.Context) ([]*models.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/items", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var items []*models.Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return items, nil
}

// Reset restores every item to its initial quantity.
func (c *Client) Reset(ctx context.Context) ([]*models.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reset", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var resetResp struct {
		Message string         `json:"message"`
		Items   []*models.Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resetResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return resetResp.Items, nil
}

// Subscribe registers for state updates over SSE and returns the
// subscription together with a snapshot fetched after registration. The
// stream replays the server's connect-time snapshot frames onto the
// channel, so a mutation committed between this snapshot and the connect
// is still delivered; drop updates whose seq is not newer than the
// snapshot's, as the ShopService contract requires.
func (c *Client) Subscribe(ctx context.Context) (*events.Subscription, []*models.Item, error) {
	sub, err := c.sseManager.subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}

	items, err := c.Items(ctx)
	if err != nil {
		c.sseManager.unsubscribe(sub)
		return nil, nil, err
	}

	return sub, items, nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(sub *events.Subscription) {
	c.sseManager.unsubscribe(sub)
}

// parseErrorResponse extracts an error from an HTTP response. The server
// returns the shared ErrorFields shape, which is mapped back onto the
// typed sentinel errors so callers can use errors.Is on either side of
// the wire.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var fields errors.ErrorFields
	if json.Unmarshal(body, &fields) == nil && fields.Title != "" {
		detail := fields.Detail
		if fields.ExtraInfo != nil {
			detail = *fields.ExtraInfo
		}

		switch errors.StatusCode(resp.StatusCode) {
		case errors.StatusConflict:
			return errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrOutOfStock, detail), errors.StatusConflict)
		case errors.StatusNotFound:
			return errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrItemNotFound, detail), errors.StatusNotFound)
		default:
			return errors.NewShopError(fmt.Errorf("%s: %s", fields.Title, detail), errors.StatusCode(resp.StatusCode))
		}
	}

	// Return raw body if not the expected shape
	if len(body) > 0 {
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	return fmt.Errorf("%s", resp.Status)
}

// Close closes the client and any active connections.
func (c *Client) Close() error {
	c.sseManager.close()
	return nil
}
