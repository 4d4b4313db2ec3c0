package storage

import (
	"errors"
	"time"

	"diagview/internal/catalog"
)

var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("key not found")

	// ErrNoSnapshot is returned when no snapshot has been saved under a name
	ErrNoSnapshot = errors.New("snapshot not found")
)

// Settings are the operator-editable layout settings, applied on next start
type Settings struct {
	Layout      string    `json:"layout"`
	RowsPerPage int       `json:"rowsPerPage"`
	Attributes  []string  `json:"attributes,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// Snapshot is the set of last-known sink values keyed by cell id
type Snapshot struct {
	SavedAt time.Time                `cbor:"1,keyasint"`
	Values  map[string]catalog.Value `cbor:"2,keyasint"`
}

// Storage is the interface for settings, component data and value snapshots
type Storage interface {
	// Settings Methods

	// GetSettings returns the stored settings, or ErrNotFound if none were saved
	GetSettings() (*Settings, error)

	// SaveSettings replaces the stored settings
	SaveSettings(s *Settings) error

	// Component Data Methods

	// Get retrieves data for a component by key
	// Returns ErrNotFound if the key doesn't exist
	Get(component, key string) ([]byte, error)

	// GetInt retrieves int data for a component by key
	GetInt(component, key string) (int, error)

	// GetBool retrieves bool data for a component by key
	GetBool(component, key string) (bool, error)

	// Set stores data for a component by key
	Set(component, key string, value []byte) error

	// SetInt stores int data for a component by key
	SetInt(component, key string, value int) error

	// SetBool stores bool data for a component by key
	SetBool(component, key string, value bool) error

	// Delete removes data for a component by key
	Delete(component, key string) error

	// List returns all keys and values for a component
	List(component string) (map[string][]byte, error)

	// Snapshot Methods

	// SaveSnapshot stores values under name, replacing any earlier snapshot
	SaveSnapshot(name string, snap *Snapshot) error

	// LoadSnapshot returns the snapshot stored under name, or ErrNoSnapshot
	LoadSnapshot(name string) (*Snapshot, error)

	// Lifecycle Methods

	// Close closes the storage
	Close() error
}
