package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/maneuver-lab/model"
)

var (
	// ErrBodyNotFound is returned when a body name is not in the catalog.
	ErrBodyNotFound = errors.New("central body not found")
	// ErrBodyExists is returned by AddBody for a name already present.
	ErrBodyExists = errors.New("central body already exists")
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventBodyUpdated
)

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type EventType
	Body model.CentralBody
}

// BodyCatalog is an in-memory, thread-safe store of central bodies keyed by
// lower-case name.
type BodyCatalog struct {
	mu sync.RWMutex

	bodies map[string]model.CentralBody

	// subscribers keyed by a never-reused id, so removing one cannot
	// disturb another.
	subs   map[uint64]func(Event)
	nextID uint64
}

// NewBodyCatalog constructs a catalog seeded with the given bodies.
func NewBodyCatalog(seed ...model.CentralBody) (*BodyCatalog, error) {
	c := &BodyCatalog{
		bodies: make(map[string]model.CentralBody),
		subs:   make(map[uint64]func(Event)),
	}
	for _, b := range seed {
		if err := c.AddBody(b); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewDefaultCatalog returns a catalog holding model.DefaultBodies.
func NewDefaultCatalog() *BodyCatalog {
	c, err := NewBodyCatalog(model.DefaultBodies()...)
	if err != nil {
		// The built-in constants are valid; a failure here is a programming error.
		panic(err)
	}
	return c
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddBody validates and inserts a new body.
func (c *BodyCatalog) AddBody(b model.CentralBody) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Name = key(b.Name)

	c.mu.Lock()
	if _, exists := c.bodies[b.Name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.Name)
	}
	c.bodies[b.Name] = b
	subs := c.subscribersLocked()
	c.mu.Unlock()

	for _, sub := range subs {
		sub(Event{Type: EventBodyAdded, Body: b})
	}
	return nil
}

// UpsertBody inserts or replaces a body, so configuration can override the
// built-in constants.
func (c *BodyCatalog) UpsertBody(b model.CentralBody) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Name = key(b.Name)

	c.mu.Lock()
	_, existed := c.bodies[b.Name]
	c.bodies[b.Name] = b
	subs := c.subscribersLocked()
	c.mu.Unlock()

	ev := Event{Type: EventBodyAdded, Body: b}
	if existed {
		ev.Type = EventBodyUpdated
	}
	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(ev)
	}
	return nil
}

// GetBody looks up a body by case-insensitive name.
func (c *BodyCatalog) GetBody(name string) (model.CentralBody, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bodies[key(name)]
	if !ok {
		return model.CentralBody{}, fmt.Errorf("%w: %q", ErrBodyNotFound, name)
	}
	return b, nil
}

// ListBodies returns a snapshot sorted by name.
func (c *BodyCatalog) ListBodies() []model.CentralBody {
	c.mu.RLock()
	res := make([]model.CentralBody, 0, len(c.bodies))
	for _, b := range c.bodies {
		res = append(res, b)
	}
	c.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Subscribe registers a callback for catalog events. The returned function
// removes exactly this callback and is safe to call more than once.
func (c *BodyCatalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// subscribersLocked snapshots the callbacks in subscription order. c.mu must be held.
func (c *BodyCatalog) subscribersLocked() []func(Event) {
	ids := make([]uint64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}
