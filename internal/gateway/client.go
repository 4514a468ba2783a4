// Package gateway issues typed, bearer-authenticated requests against the
// inventory service HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stocktide/stocktide/internal/auth"
	"github.com/stocktide/stocktide/internal/inventory"
)

const maxErrorBodyBytes = 64 << 10

// Page is one server-returned slice of the item collection.
type Page struct {
	Items    []inventory.Item `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// Client calls the inventory service. The zero value is not usable; use New.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  auth.TokenSource
	tracer  trace.Tracer
}

// New creates a gateway client for the given base URL. A nil httpClient
// falls back to http.DefaultClient; timeouts are that client's concern.
func New(baseURL string, tokens auth.TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		tokens:  tokens,
		tracer:  otel.Tracer("stocktide/gateway"),
	}
}

// BaseURL returns the configured service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ListItems fetches one filtered page of items.
func (c *Client) ListItems(ctx context.Context, filters inventory.Filters, page, pageSize int) (Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	if filters.Type != "" {
		query.Set("item_type", filters.Type)
	}
	if filters.Category != "" {
		query.Set("category", filters.Category)
	}
	if filters.Status != "" {
		query.Set("status", filters.Status)
	}
	if filters.ContainerID != "" {
		query.Set("container_id", filters.ContainerID)
	}
	if filters.Search != "" {
		query.Set("search", filters.Search)
	}
	if filters.LowStock {
		query.Set("low_stock", "true")
	}

	var result Page
	if err := c.do(ctx, "ListItems", http.MethodGet, "/items", query, nil, &result); err != nil {
		return Page{}, err
	}
	return result, nil
}

// GetItem fetches a single item by id.
func (c *Client) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	var item inventory.Item
	if err := c.do(ctx, "GetItem", http.MethodGet, "/items/"+id, nil, nil, &item); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

// CreateItem creates an item server-side and returns the stored record.
func (c *Client) CreateItem(ctx context.Context, draft inventory.ItemDraft) (inventory.Item, error) {
	var item inventory.Item
	if err := c.do(ctx, "CreateItem", http.MethodPost, "/items", nil, draft, &item); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

// UpdateItemFields applies a partial update and returns the stored record.
func (c *Client) UpdateItemFields(ctx context.Context, id string, patch inventory.ItemPatch) (inventory.Item, error) {
	var item inventory.Item
	if err := c.do(ctx, "UpdateItemFields", http.MethodPatch, "/items/"+id, nil, patch, &item); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item server-side.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, "DeleteItem", http.MethodDelete, "/items/"+id, nil, nil, nil)
}

type adjustPayload struct {
	Delta float64 `json:"delta"`
	Note  string  `json:"note,omitempty"`
}

// AdjustQuantity applies a quantity delta server-side. The raw delta is sent
// as-is; the server owns clamping and any cascaded status transition, and the
// returned item is authoritative.
func (c *Client) AdjustQuantity(ctx context.Context, id string, delta float64, note string) (inventory.Item, error) {
	var item inventory.Item
	if err := c.do(ctx, "AdjustQuantity", http.MethodPost, "/items/"+id+"/adjust", nil, adjustPayload{Delta: delta, Note: note}, &item); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

type statusPayload struct {
	Status     inventory.Status `json:"status"`
	AssignedTo string           `json:"assigned_to,omitempty"`
}

// ChangeStatus transitions an item's lifecycle status, optionally assigning
// it to someone.
func (c *Client) ChangeStatus(ctx context.Context, id string, status inventory.Status, assignee string) (inventory.Item, error) {
	var item inventory.Item
	if err := c.do(ctx, "ChangeStatus", http.MethodPatch, "/items/"+id+"/status", nil, statusPayload{Status: status, AssignedTo: assignee}, &item); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

type movePayload struct {
	ContainerID  *string `json:"container_id,omitempty"`
	ParentItemID *string `json:"parent_item_id,omitempty"`
}

// MoveItem reassigns an item's container and parent item. Empty arguments
// clear the respective reference.
func (c *Client) MoveItem(ctx context.Context, id, containerID, parentItemID string) (inventory.Item, error) {
	payload := movePayload{}
	if containerID != "" {
		payload.ContainerID = &containerID
	}
	if parentItemID != "" {
		payload.ParentItemID = &parentItemID
	}
	var item inventory.Item
	if err := c.do(ctx, "MoveItem", http.MethodPatch, "/items/"+id+"/move", nil, payload, &item); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

// ListContainers fetches the flat container list.
func (c *Client) ListContainers(ctx context.Context) ([]inventory.Container, error) {
	var containers []inventory.Container
	if err := c.do(ctx, "ListContainers", http.MethodGet, "/containers", nil, nil, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

// do runs one request/response cycle: span, auth header, request id,
// classification of failures, JSON decode of the success body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve credential: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		gerr := networkError(err)
		span.RecordError(gerr)
		return gerr
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		gerr := statusError(resp.StatusCode, raw)
		span.RecordError(gerr)
		return gerr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		gerr := &Error{Code: CodeServer, Status: resp.StatusCode, Message: fmt.Sprintf("decode %s response: %v", op, err), cause: err}
		span.RecordError(gerr)
		return gerr
	}
	return nil
}
