// Package push consumes the service's change-notification websocket and
// reconciles an inventory store against it.
package push

import (
	"encoding/json"

	"github.com/stocktide/stocktide/internal/inventory"
)

// MessageType tags the push envelope union.
type MessageType string

const (
	MessageItemUpdated      MessageType = "item_updated"
	MessageItemDeleted      MessageType = "item_deleted"
	MessageInventoryChanged MessageType = "inventory_changed"
)

// envelope is the wire shape: {"type": ..., "payload": ...}.
type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Message is one parsed notification. Item is set for item_updated, ItemID
// for item_deleted; inventory_changed carries no payload.
type Message struct {
	Type   MessageType
	Item   inventory.Item
	ItemID string
}

// parseMessage decodes one frame. Unparseable or unrecognized frames report
// ok=false and are dropped by the caller; the channel must never fail the
// session over bad input.
func parseMessage(raw []byte) (Message, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, false
	}

	switch env.Type {
	case MessageItemUpdated:
		var item inventory.Item
		if err := json.Unmarshal(env.Payload, &item); err != nil || item.ID == "" {
			return Message{}, false
		}
		return Message{Type: MessageItemUpdated, Item: item}, true

	case MessageItemDeleted:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.ID == "" {
			return Message{}, false
		}
		return Message{Type: MessageItemDeleted, ItemID: payload.ID}, true

	case MessageInventoryChanged:
		return Message{Type: MessageInventoryChanged}, true
	}
	return Message{}, false
}
