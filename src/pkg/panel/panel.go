/*
Package panel mirrors the product-image containers of the poster UI on the
server side: per-image selection, lock state, watermark caption and the
delete-affordance visibility the lock toggles.

Items are registered and removed explicitly when an image is added to or
deleted from the poster; nothing here is inferred from side effects.
*/
package panel

import (
	"sort"
	"strconv"
	"sync"
)

// Item is one product-image slot. It implements batch.Container.
type Item struct {
	mu            sync.Mutex
	id            int64
	name          string
	blob          []byte
	caption       string
	selected      bool
	locked        bool
	deleteVisible bool
}

// NewItem builds a slot for a stored image. The delete affordance starts
// visible exactly when the slot holds an image.
func NewItem(id int64, name string, blob []byte) *Item {
	return &Item{
		id:            id,
		name:          name,
		blob:          blob,
		deleteVisible: len(blob) > 0,
	}
}

func (i *Item) ID() string { return strconv.FormatInt(i.id, 10) }

func (i *Item) Name() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.name
}

func (i *Item) ImageBlob() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.blob
}

func (i *Item) HasImage() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.blob) > 0
}

// Lock disables user interaction on the slot while recognition runs: the
// slot stops taking pointer events and hides its delete affordance.
func (i *Item) Lock() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.locked = true
	i.deleteVisible = false
}

// Unlock restores interaction. The delete affordance comes back exactly
// when the slot still holds an image.
func (i *Item) Unlock() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.locked = false
	i.deleteVisible = len(i.blob) > 0
}

func (i *Item) Locked() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.locked
}

func (i *Item) DeleteVisible() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deleteVisible
}

func (i *Item) SetCaption(text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.caption = text
}

func (i *Item) Caption() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.caption
}

func (i *Item) SetSelected(selected bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.selected = selected
}

func (i *Item) Selected() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.selected
}

// State is the JSON view of a slot served to the UI.
type State struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Caption       string `json:"caption"`
	Selected      bool   `json:"selected"`
	Locked        bool   `json:"locked"`
	DeleteVisible bool   `json:"delete_visible"`
}

func (i *Item) Snapshot() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return State{
		ID:            i.id,
		Name:          i.name,
		Caption:       i.caption,
		Selected:      i.selected,
		Locked:        i.locked,
		DeleteVisible: i.deleteVisible,
	}
}

// Registry keeps the live slots, keyed by stored-image id.
type Registry struct {
	mu    sync.RWMutex
	items map[int64]*Item
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[int64]*Item)}
}

func (r *Registry) Add(item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.id] = item
}

func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

func (r *Registry) Get(id int64) (*Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	return item, ok
}

// All returns every slot ordered by id.
func (r *Registry) All() []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

// Selected returns the selected slots ordered by id.
func (r *Registry) Selected() []*Item {
	all := r.All()
	out := make([]*Item, 0, len(all))
	for _, item := range all {
		if item.Selected() {
			out = append(out, item)
		}
	}
	return out
}
