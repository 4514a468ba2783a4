// Package stub is an in-memory stand-in for the inventory service, good
// enough for local development and integration tests of the client. State
// lives for the process only.
package stub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/websocket"

	"github.com/stocktide/stocktide/internal/gateway"
	"github.com/stocktide/stocktide/internal/inventory"
)

// Server holds the throwaway inventory state behind the stub routes.
type Server struct {
	mu         sync.Mutex
	items      map[string]inventory.Item
	containers map[string]inventory.Container
	hub        *hub
	clock      func() time.Time
}

// New creates an empty stub server.
func New() *Server {
	return &Server{
		items:      make(map[string]inventory.Item),
		containers: make(map[string]inventory.Container),
		hub:        newHub(),
		clock:      time.Now,
	}
}

// Handler returns the HTTP surface: the /items and /containers API plus the
// /ws push channel.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	r.HandleFunc("/items", s.handleCreateItem).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}", s.handleGetItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", s.handlePatchItem).Methods(http.MethodPatch)
	r.HandleFunc("/items/{id}", s.handleDeleteItem).Methods(http.MethodDelete)
	r.HandleFunc("/items/{id}/adjust", s.handleAdjust).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}/status", s.handleStatus).Methods(http.MethodPatch)
	r.HandleFunc("/items/{id}/move", s.handleMove).Methods(http.MethodPatch)
	r.HandleFunc("/containers", s.handleListContainers).Methods(http.MethodGet)
	r.HandleFunc("/containers", s.handleCreateContainer).Methods(http.MethodPost)
	r.Handle("/ws", websocket.Handler(s.handleWS))
	return r
}

// PushClients reports how many push connections are currently registered.
func (s *Server) PushClients() int {
	return s.hub.size()
}

// SeedItem installs an item directly, assigning an id when absent. Intended
// for tests and dev seeding.
func (s *Server) SeedItem(item inventory.Item) inventory.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.clock().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	s.items[item.ID] = item
	return item
}

// SeedContainer installs a container directly, assigning ids when absent.
func (s *Server) SeedContainer(container inventory.Container) inventory.Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	if container.ID == "" {
		container.ID = uuid.NewString()
	}
	if container.QRCodeID == "" {
		container.QRCodeID = uuid.NewString()
	}
	now := s.clock().UTC()
	if container.CreatedAt.IsZero() {
		container.CreatedAt = now
	}
	container.UpdatedAt = now
	s.containers[container.ID] = container
	return container
}

func writeDetail(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": fmt.Sprintf(format, args...)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func matchesFilters(item inventory.Item, query map[string]string) bool {
	if v := query["item_type"]; v != "" && string(item.ItemType) != v {
		return false
	}
	if v := query["category"]; v != "" && !strings.Contains(strings.ToLower(item.Category), strings.ToLower(v)) {
		return false
	}
	if v := query["status"]; v != "" && string(item.Status) != v {
		return false
	}
	if v := query["container_id"]; v != "" && item.ContainerID != v {
		return false
	}
	if v := query["search"]; v != "" {
		needle := strings.ToLower(v)
		if !strings.Contains(strings.ToLower(item.Name), needle) &&
			!strings.Contains(strings.ToLower(item.SKU), needle) &&
			!strings.Contains(strings.ToLower(item.Barcode), needle) {
			return false
		}
	}
	if query["low_stock"] == "true" && !item.LowStock() {
		return false
	}
	return true
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := map[string]string{}
	for _, key := range []string{"item_type", "category", "status", "container_id", "search", "low_stock"} {
		query[key] = r.URL.Query().Get(key)
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	s.mu.Lock()
	matched := make([]inventory.Item, 0, len(s.items))
	for _, item := range s.items {
		if matchesFilters(item, query) {
			matched = append(matched, item)
		}
	}
	s.mu.Unlock()

	// Newest first, like the service default sort.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, gateway.Page{
		Items:    matched[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var draft inventory.ItemDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid item payload")
		return
	}
	if !draft.ItemType.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "item_type must be consumable or asset")
		return
	}
	if strings.TrimSpace(draft.Name) == "" || strings.TrimSpace(draft.Category) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name and category are required")
		return
	}

	now := s.clock().UTC()
	item := inventory.Item{
		ID:           uuid.NewString(),
		ItemType:     draft.ItemType,
		Name:         draft.Name,
		SKU:          draft.SKU,
		Category:     draft.Category,
		ContainerID:  draft.ContainerID,
		ParentItemID: draft.ParentItemID,
		LocationNote: draft.LocationNote,
		Quantity:     draft.Quantity,
		Unit:         draft.Unit,
		MinStock:     draft.MinStock,
		UnitPrice:    draft.UnitPrice,
		Status:       draft.Status,
		AssignedTo:   draft.AssignedTo,
		Attributes:   draft.Attributes,
		Barcode:      draft.Barcode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if item.Status == "" {
		item.Status = inventory.StatusInStock
	}
	if item.Unit == "" {
		item.Unit = "pcs"
	}
	// Assets are tracked individually: quantity pinned to 1, no threshold.
	if item.ItemType == inventory.TypeAsset {
		item.Quantity = 1
		item.MinStock = nil
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	s.hub.broadcast("inventory_changed", nil)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) getItem(id string) (inventory.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.getItem(mux.Vars(r)["id"])
	if !ok {
		writeDetail(w, http.StatusNotFound, "Item not found.")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	var patch inventory.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid patch payload")
		return
	}

	s.mu.Lock()
	item, ok := s.items[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Item not found.")
		return
	}
	applyPatch(&item, patch)
	if item.ItemType == inventory.TypeAsset {
		item.Quantity = 1
	}
	item.UpdatedAt = s.clock().UTC()
	s.items[item.ID] = item
	s.mu.Unlock()

	s.hub.broadcast("item_updated", item)
	writeJSON(w, http.StatusOK, item)
}

func applyPatch(item *inventory.Item, patch inventory.ItemPatch) {
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.SKU != nil {
		item.SKU = *patch.SKU
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.ContainerID != nil {
		item.ContainerID = *patch.ContainerID
	}
	if patch.ParentItemID != nil {
		item.ParentItemID = *patch.ParentItemID
	}
	if patch.LocationNote != nil {
		item.LocationNote = *patch.LocationNote
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
	}
	if patch.MinStock != nil {
		item.MinStock = patch.MinStock
	}
	if patch.UnitPrice != nil {
		item.UnitPrice = patch.UnitPrice
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		item.AssignedTo = *patch.AssignedTo
	}
	if patch.Attributes != nil {
		item.Attributes = *patch.Attributes
	}
	if patch.RestockURL != nil {
		item.RestockURL = *patch.RestockURL
	}
	if patch.Barcode != nil {
		item.Barcode = *patch.Barcode
	}
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Item not found.")
		return
	}
	for _, other := range s.items {
		if other.ParentItemID == id {
			s.mu.Unlock()
			writeDetail(w, http.StatusConflict, "Cannot delete item with child dependencies. Remove children first.")
			return
		}
	}
	delete(s.items, id)
	s.mu.Unlock()

	s.hub.broadcast("item_deleted", map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta float64 `json:"delta"`
		Note  string  `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid adjust payload")
		return
	}

	s.mu.Lock()
	item, ok := s.items[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Item not found.")
		return
	}
	if item.ItemType == inventory.TypeAsset {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Cannot adjust quantity for asset type items.")
		return
	}
	newQty := item.Quantity + payload.Delta
	if newQty < 0 {
		current := item.Quantity
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Insufficient stock. Current: %v, delta: %v", current, payload.Delta)
		return
	}
	item.Quantity = newQty
	item.UpdatedAt = s.clock().UTC()
	s.items[item.ID] = item
	s.mu.Unlock()

	s.hub.broadcast("item_updated", item)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status     inventory.Status `json:"status"`
		AssignedTo string           `json:"assigned_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid status payload")
		return
	}
	if !payload.Status.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "unknown status %q", payload.Status)
		return
	}
	if payload.Status == inventory.StatusLoaned && payload.AssignedTo == "" {
		writeDetail(w, http.StatusBadRequest, "assigned_to is required when status is 'loaned'.")
		return
	}

	s.mu.Lock()
	item, ok := s.items[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Item not found.")
		return
	}
	item.Status = payload.Status
	item.AssignedTo = payload.AssignedTo
	item.UpdatedAt = s.clock().UTC()
	s.items[item.ID] = item
	s.mu.Unlock()

	s.hub.broadcast("item_updated", item)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ContainerID  *string `json:"container_id"`
		ParentItemID *string `json:"parent_item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid move payload")
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Item not found.")
		return
	}
	if payload.ContainerID != nil && *payload.ContainerID != "" {
		if _, ok := s.containers[*payload.ContainerID]; !ok {
			s.mu.Unlock()
			writeDetail(w, http.StatusNotFound, "Target container not found.")
			return
		}
		item.ContainerID = *payload.ContainerID
	} else {
		item.ContainerID = ""
	}
	if payload.ParentItemID != nil && *payload.ParentItemID != "" {
		if *payload.ParentItemID == id {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Item cannot be its own parent.")
			return
		}
		if _, ok := s.items[*payload.ParentItemID]; !ok {
			s.mu.Unlock()
			writeDetail(w, http.StatusNotFound, "Target parent item not found.")
			return
		}
		item.ParentItemID = *payload.ParentItemID
	} else {
		item.ParentItemID = ""
	}
	item.UpdatedAt = s.clock().UTC()
	s.items[id] = item
	s.mu.Unlock()

	s.hub.broadcast("item_updated", item)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleListContainers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	containers := make([]inventory.Container, 0, len(s.containers))
	for _, container := range s.containers {
		containers = append(containers, container)
	}
	s.mu.Unlock()
	sort.Slice(containers, func(i, j int) bool { return containers[i].Name < containers[j].Name })
	writeJSON(w, http.StatusOK, containers)
}

func (s *Server) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	var container inventory.Container
	if err := json.NewDecoder(r.Body).Decode(&container); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid container payload")
		return
	}
	if strings.TrimSpace(container.Name) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	container.ID = ""
	created := s.SeedContainer(container)
	writeJSON(w, http.StatusCreated, created)
}

// handleWS keeps a push client registered until its connection breaks. The
// stub never reads application frames from clients.
func (s *Server) handleWS(conn *websocket.Conn) {
	s.hub.add(conn)
	defer s.hub.remove(conn)
	var discard string
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			return
		}
	}
}
