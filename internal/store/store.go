// Package store holds the in-memory mirror of the remote item collection.
//
// The store is a best-effort, single-session cache: it serves the last
// successfully fetched page for the active filter/page/size triple, applies
// optimistic local mutations ahead of server confirmation, and is reconciled
// by push notifications. It is not a source of truth.
package store

import (
	"context"
	"sync"

	"github.com/stocktide/stocktide/internal/gateway"
	"github.com/stocktide/stocktide/internal/inventory"
)

// DefaultPageSize matches the service default for unqualified list calls.
const DefaultPageSize = 20

// Gateway is the remote surface the store depends on. *gateway.Client
// satisfies it; tests install fakes.
type Gateway interface {
	ListItems(ctx context.Context, filters inventory.Filters, page, pageSize int) (gateway.Page, error)
	CreateItem(ctx context.Context, draft inventory.ItemDraft) (inventory.Item, error)
	UpdateItemFields(ctx context.Context, id string, patch inventory.ItemPatch) (inventory.Item, error)
	DeleteItem(ctx context.Context, id string) error
	AdjustQuantity(ctx context.Context, id string, delta float64, note string) (inventory.Item, error)
	ChangeStatus(ctx context.Context, id string, status inventory.Status, assignee string) (inventory.Item, error)
	MoveItem(ctx context.Context, id, containerID, parentItemID string) (inventory.Item, error)
	ListContainers(ctx context.Context) ([]inventory.Container, error)
}

// Snapshot is a consistent copy of the store state for consumers.
type Snapshot struct {
	Items      []inventory.Item
	Total      int
	Page       int
	PageSize   int
	Filters    inventory.Filters
	Containers []inventory.Container
	Loading    bool
}

// Store is the process-wide inventory cache. Construct instances with New;
// there is deliberately no package-level singleton so tests can isolate
// state.
type Store struct {
	gw Gateway

	mu         sync.Mutex
	items      []inventory.Item
	total      int
	page       int
	pageSize   int
	filters    inventory.Filters
	containers []inventory.Container
	loading    bool
	fetchSeq   uint64

	subs    map[int]chan struct{}
	nextSub int
}

// New creates an empty store backed by the given gateway. State is populated
// on the first Fetch.
func New(gw Gateway) *Store {
	return &Store{
		gw:       gw,
		page:     1,
		pageSize: DefaultPageSize,
		subs:     make(map[int]chan struct{}),
	}
}

// Subscribe registers a change listener. The channel receives a coalesced
// signal after state changes; the returned cancel function releases it.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify signals all subscribers without blocking. A subscriber that has not
// drained its pending signal simply keeps the one it has.
func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Items:      make([]inventory.Item, len(s.items)),
		Total:      s.total,
		Page:       s.page,
		PageSize:   s.pageSize,
		Filters:    s.filters,
		Containers: make([]inventory.Container, len(s.containers)),
		Loading:    s.loading,
	}
	copy(snap.Items, s.items)
	copy(snap.Containers, s.containers)
	return snap
}

// Fetch loads the page for the current filter/page/size triple. On success
// the item list and total count are replaced atomically; on failure prior
// state is left untouched and the classified error is returned. Overlapping
// fetches race at the server, but a response that is older than the newest
// issued fetch is discarded on arrival, and only the newest completion
// clears the loading flag.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.loading = true
	filters, page, pageSize := s.filters, s.page, s.pageSize
	s.mu.Unlock()
	s.notify()

	result, err := s.gw.ListItems(ctx, filters, page, pageSize)

	s.mu.Lock()
	stale := seq != s.fetchSeq
	if !stale {
		s.loading = false
	}
	if err == nil && !stale {
		s.items = result.Items
		s.total = result.Total
	}
	s.mu.Unlock()
	if !stale {
		s.notify()
	}
	if err != nil && !stale {
		return err
	}
	return nil
}

// FetchContainers loads the flat container list.
func (s *Store) FetchContainers(ctx context.Context) error {
	containers, err := s.gw.ListContainers(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.containers = containers
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetFilter merges the patch into the active filter set, resets to the first
// page and refetches. Clearing a dimension uses the patch's zero-value
// sentinel, never "filter for empty".
func (s *Store) SetFilter(ctx context.Context, patch inventory.FilterPatch) error {
	s.mu.Lock()
	s.filters = patch.Apply(s.filters)
	s.page = 1
	s.mu.Unlock()
	return s.Fetch(ctx)
}

// SetPage moves to the given 1-based page and refetches.
func (s *Store) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return s.Fetch(ctx)
}

// SetPageSize changes the page size, resets to the first page and refetches.
func (s *Store) SetPageSize(ctx context.Context, pageSize int) error {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	s.mu.Lock()
	s.pageSize = pageSize
	s.page = 1
	s.mu.Unlock()
	return s.Fetch(ctx)
}

// indexOf returns the position of id in the current page, or -1. Caller
// holds s.mu.
func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// AdjustQuantity applies a quantity delta optimistically and reconciles with
// the server outcome. The local copy is clamped at zero immediately; the raw
// delta goes on the wire and the server-returned item (including any
// cascaded status change) overwrites the local copy on success. On failure
// the pre-adjust quantity is restored verbatim and the classified error is
// returned; there is no automatic retry.
//
// Two overlapping adjusts on one item each snapshot their own previous
// value, so a rollback can clobber the other call's optimistic value. That
// race is inherent to the single-session model and is left as-is.
func (s *Store) AdjustQuantity(ctx context.Context, id string, delta float64, note string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	applied := idx >= 0
	var previous float64
	if applied {
		previous = s.items[idx].Quantity
		tentative := previous + delta
		if tentative < 0 {
			tentative = 0
		}
		s.items[idx].Quantity = tentative
	}
	s.mu.Unlock()
	if applied {
		s.notify()
	}

	item, err := s.gw.AdjustQuantity(ctx, id, delta, note)
	if err != nil {
		if applied {
			s.mu.Lock()
			if i := s.indexOf(id); i >= 0 {
				s.items[i].Quantity = previous
			}
			s.mu.Unlock()
			s.notify()
		}
		return err
	}

	s.UpdateItem(item)
	return nil
}

// UpdateItem replaces the cached entry with a matching id. Items outside the
// current page are ignored; the page they belong to is not loaded.
func (s *Store) UpdateItem(item inventory.Item) {
	s.mu.Lock()
	idx := s.indexOf(item.ID)
	if idx >= 0 {
		s.items[idx] = item
	}
	s.mu.Unlock()
	if idx >= 0 {
		s.notify()
	}
}

// RemoveItem drops the entry from the current page and decrements the total
// count by one. Absent ids are a no-op, which also makes delete idempotent.
// The page is left short; no replacement row is fetched.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		s.total--
	}
	s.mu.Unlock()
	if idx >= 0 {
		s.notify()
	}
}

// Create sends a new item to the server and refetches the current page so
// placement and ordering stay server-decided.
func (s *Store) Create(ctx context.Context, draft inventory.ItemDraft) (inventory.Item, error) {
	item, err := s.gw.CreateItem(ctx, draft)
	if err != nil {
		return inventory.Item{}, err
	}
	if err := s.Fetch(ctx); err != nil {
		return item, err
	}
	return item, nil
}

// UpdateFields applies a partial edit and merges the confirmed record.
func (s *Store) UpdateFields(ctx context.Context, id string, patch inventory.ItemPatch) error {
	item, err := s.gw.UpdateItemFields(ctx, id, patch)
	if err != nil {
		return err
	}
	s.UpdateItem(item)
	return nil
}

// ChangeStatus transitions an item's lifecycle status and merges the
// confirmed record.
func (s *Store) ChangeStatus(ctx context.Context, id string, status inventory.Status, assignee string) error {
	item, err := s.gw.ChangeStatus(ctx, id, status, assignee)
	if err != nil {
		return err
	}
	s.UpdateItem(item)
	return nil
}

// Move reassigns an item's container or parent and merges the confirmed
// record.
func (s *Store) Move(ctx context.Context, id, containerID, parentItemID string) error {
	item, err := s.gw.MoveItem(ctx, id, containerID, parentItemID)
	if err != nil {
		return err
	}
	s.UpdateItem(item)
	return nil
}

// Delete removes the item server-side, then drops it from the local page.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.RemoveItem(id)
	return nil
}
