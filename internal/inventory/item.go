// Package inventory defines the domain types shared by the gateway client,
// the in-memory store and the push listener.
package inventory

import "time"

// ItemType distinguishes counted stock from individually tracked assets.
type ItemType string

const (
	TypeConsumable ItemType = "consumable"
	TypeAsset      ItemType = "asset"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == TypeConsumable || t == TypeAsset
}

// Status is the lifecycle state of an item.
type Status string

const (
	StatusInStock   Status = "in_stock"
	StatusInService Status = "in_service"
	StatusIdle      Status = "idle"
	StatusLoaned    Status = "loaned"
	StatusDamaged   Status = "damaged"
	StatusRetired   Status = "retired"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusInStock, StatusInService, StatusIdle, StatusLoaned, StatusDamaged, StatusRetired:
		return true
	}
	return false
}

// Item is a tracked consumable or asset record. The id is server-assigned
// and immutable; clients never invent ids. Field names follow the service
// wire contract.
type Item struct {
	ID           string         `json:"id"`
	ItemType     ItemType       `json:"item_type"`
	Name         string         `json:"name"`
	SKU          string         `json:"sku,omitempty"`
	Category     string         `json:"category"`
	ContainerID  string         `json:"container_id,omitempty"`
	ParentItemID string         `json:"parent_item_id,omitempty"`
	LocationNote string         `json:"location_note,omitempty"`
	Quantity     float64        `json:"quantity"`
	Unit         string         `json:"unit"`
	MinStock     *float64       `json:"min_stock,omitempty"`
	UnitPrice    *float64       `json:"unit_price,omitempty"`
	PurchaseDate string         `json:"purchase_date,omitempty"`
	Status       Status         `json:"status"`
	AssignedTo   string         `json:"assigned_to,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	RestockURL   string         `json:"restock_url,omitempty"`
	Barcode      string         `json:"barcode,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// LowStock reports whether the item is a consumable at or below its
// minimum-stock threshold. Items without a threshold are never low.
func (i Item) LowStock() bool {
	if i.ItemType != TypeConsumable || i.MinStock == nil {
		return false
	}
	return i.Quantity <= *i.MinStock
}

// ItemDraft carries the fields accepted when creating an item.
type ItemDraft struct {
	ItemType     ItemType       `json:"item_type"`
	Name         string         `json:"name"`
	SKU          string         `json:"sku,omitempty"`
	Category     string         `json:"category"`
	ContainerID  string         `json:"container_id,omitempty"`
	ParentItemID string         `json:"parent_item_id,omitempty"`
	LocationNote string         `json:"location_note,omitempty"`
	Quantity     float64        `json:"quantity"`
	Unit         string         `json:"unit,omitempty"`
	MinStock     *float64       `json:"min_stock,omitempty"`
	UnitPrice    *float64       `json:"unit_price,omitempty"`
	Status       Status         `json:"status,omitempty"`
	AssignedTo   string         `json:"assigned_to,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Barcode      string         `json:"barcode,omitempty"`
}

// ItemPatch carries a partial update; nil fields are left unchanged by the
// server.
type ItemPatch struct {
	Name         *string         `json:"name,omitempty"`
	SKU          *string         `json:"sku,omitempty"`
	Category     *string         `json:"category,omitempty"`
	ContainerID  *string         `json:"container_id,omitempty"`
	ParentItemID *string         `json:"parent_item_id,omitempty"`
	LocationNote *string         `json:"location_note,omitempty"`
	Quantity     *float64        `json:"quantity,omitempty"`
	Unit         *string         `json:"unit,omitempty"`
	MinStock     *float64        `json:"min_stock,omitempty"`
	UnitPrice    *float64        `json:"unit_price,omitempty"`
	Status       *Status         `json:"status,omitempty"`
	AssignedTo   *string         `json:"assigned_to,omitempty"`
	Attributes   *map[string]any `json:"attributes,omitempty"`
	RestockURL   *string         `json:"restock_url,omitempty"`
	Barcode      *string         `json:"barcode,omitempty"`
}
