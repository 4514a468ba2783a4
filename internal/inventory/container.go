package inventory

import "time"

// Container is a physical or logical grouping of items, addressable by a
// separate scannable code.
type Container struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Location          string    `json:"location,omitempty"`
	QRCodeID          string    `json:"qr_code_id"`
	ParentContainerID string    `json:"parent_container_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
