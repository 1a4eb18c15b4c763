package board

import "sync"

// Surface is the external rendering collaborator. The core hands it
// renderable items and asks it spatial questions; it never learns how items
// are drawn.
type Surface interface {
	AddRenderableItem(item *Item)
	RemoveRenderableItem(item *Item)
	ItemsInRegion(region Rect) []*Item
}

// MemorySurface is an in-memory surface for headless participants and tests.
type MemorySurface struct {
	mu    sync.RWMutex
	items map[string]*Item
	order []string // insertion order, for stable snapshots
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{items: make(map[string]*Item)}
}

// AddRenderableItem places an item on the surface.
func (s *MemorySurface) AddRenderableItem(item *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return
	}
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
}

// RemoveRenderableItem removes an item from the surface.
func (s *MemorySurface) RemoveRenderableItem(item *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return
	}
	delete(s.items, item.ID)
	for i, id := range s.order {
		if id == item.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ItemsInRegion returns the items whose bounds intersect the region, in
// insertion order.
func (s *MemorySurface) ItemsInRegion(region Rect) []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []*Item
	for _, id := range s.order {
		if item := s.items[id]; item.Bounds.Intersects(region) {
			hits = append(hits, item)
		}
	}
	return hits
}

// Items returns every item on the surface in insertion order.
func (s *MemorySurface) Items() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*Item, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.items[id])
	}
	return all
}

// Contains reports whether an item is currently on the surface.
func (s *MemorySurface) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}
