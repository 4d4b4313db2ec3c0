// Package events keeps a bounded in-memory log of diagnostic and access events
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Device events
	EventFaultRaised   EventType = "fault_raised"
	EventFaultCleared  EventType = "fault_cleared"
	EventStickyFault   EventType = "sticky_fault"
	EventReadError     EventType = "read_error"
	EventChannelRange  EventType = "channel_out_of_range"
	EventHealthChanged EventType = "health_changed"

	// Access events
	EventLogin       EventType = "login"
	EventLoginFailed EventType = "login_failed"
	EventLogout      EventType = "logout"

	// Settings events
	EventSettingsChanged EventType = "settings_changed"
	EventSurfaceSelected EventType = "surface_selected"
	EventFaultInjected   EventType = "fault_injected"
)

// Event represents a single logged event
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`              // device name, username or component
	Attribute string    `json:"attribute,omitempty"` // attribute kind for device events
	Details   string    `json:"details,omitempty"`
}

// Store holds events in memory with a fixed capacity (ring buffer)
type Store struct {
	mu      sync.RWMutex
	events  []Event
	maxSize int
	nextID  int64
	now     func() time.Time
}

// DefaultMaxEvents is the capacity used by the server
const DefaultMaxEvents = 200

// NewStore creates a new event store with specified max capacity
func NewStore(maxSize int) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Store{
		events:  make([]Event, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Add adds a new event to the store and returns its ID
func (s *Store) Add(eventType EventType, source, attribute, details string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event := Event{
		ID:        s.nextID,
		Type:      eventType,
		Timestamp: s.now(),
		Source:    source,
		Attribute: attribute,
		Details:   details,
	}

	// Ring buffer: remove oldest if at max capacity
	if len(s.events) >= s.maxSize {
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)
	return event.ID
}

// GetAll returns all events (newest first)
func (s *Store) GetAll() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Event, len(s.events))
	for i, e := range s.events {
		result[len(s.events)-1-i] = e
	}
	return result
}

// GetLast returns the last N events (newest first)
func (s *Store) GetLast(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.events) {
		n = len(s.events)
	}
	if n < 0 {
		n = 0
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		result[i] = s.events[len(s.events)-1-i]
	}
	return result
}

// GetSince returns events newer than the given ID (newest first)
func (s *Store) GetSince(lastID int64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ID <= lastID {
			break
		}
		result = append(result, s.events[i])
	}
	return result
}

// Count returns the number of retained events
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LastID returns the ID of the most recent event
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}
