// Package markers tracks the engine's own pending corrections so that the
// notifications they cause are not treated as new unauthorized changes.
package markers

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultWindow is how long a marker stays armed.
	DefaultWindow = 15 * time.Second
	// DefaultCapacity bounds the number of armed markers.
	DefaultCapacity = 4096
)

// Key identifies the subject of a correction.
type Key struct {
	Kind      string // module name
	GuildID   string
	SubjectID string // user, role or channel id
	AuxID     string // role id for role restores, "mute"/"deaf" for voice flags
}

type marker struct {
	id     string
	expect string
}

// Registry holds armed markers. Each marker expires after the suppression
// window, and at most capacity markers are kept.
type Registry struct {
	armed *expirable.LRU[Key, marker]
	newID func() string
	mu    sync.Mutex
}

// New creates a registry. Zero values select the defaults.
func New(window time.Duration, capacity int) *Registry {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		armed: expirable.NewLRU[Key, marker](capacity, nil, window),
		newID: uuid.NewString,
	}
}

// Arm registers a marker before a corrective mutation is issued and returns
// its correlation id. expect is the state the correction will produce; an
// empty expect matches any observed state. Arming an armed key replaces it.
func (r *Registry) Arm(k Key, expect string) string {
	id := r.newID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed.Add(k, marker{id: id, expect: expect})
	return id
}

// Consume removes and reports a live marker whose expectation matches observed.
// A mismatching observation leaves the marker armed.
func (r *Registry) Consume(k Key, observed string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.armed.Get(k)
	if !ok {
		return false
	}
	if m.expect != "" && m.expect != observed {
		return false
	}
	r.armed.Remove(k)
	return true
}

// Disarm removes the marker armed with correlation id, used when the
// corrective mutation failed. A newer marker on the same key is kept.
func (r *Registry) Disarm(k Key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.armed.Peek(k)
	if ok && m.id == id {
		r.armed.Remove(k)
	}
}

// Armed reports whether a live marker exists for k.
func (r *Registry) Armed(k Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.armed.Peek(k)
	return ok
}

// Len returns the number of live markers.
func (r *Registry) Len() int {
	return r.armed.Len()
}
