package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

const (
	// configBucket stores operator settings
	configBucket = "_config"

	// dataBucket stores component-specific data in one nested bucket per component
	dataBucket = "_data"

	// snapshotBucket stores CBOR-encoded sink value snapshots
	snapshotBucket = "_snapshot"

	settingsKey = "settings"
)

var (
	snapshotEncMode cbor.EncMode
	snapshotDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	snapshotEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}
	snapshotDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// BoltStorage is a bbolt implementation of the Storage interface
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage creates a new BoltStorage instance
// The database file will be created if it doesn't exist
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{configBucket, dataBucket, snapshotBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Settings Methods

// GetSettings returns the stored settings
func (s *BoltStorage) GetSettings() (*Settings, error) {
	var settings *Settings
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(configBucket)).Get([]byte(settingsKey))
		if data == nil {
			return ErrNotFound
		}

		settings = &Settings{}
		if err := json.Unmarshal(data, settings); err != nil {
			return fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		return nil
	})

	return settings, err
}

// SaveSettings replaces the stored settings
func (s *BoltStorage) SaveSettings(settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(configBucket)).Put([]byte(settingsKey), data)
	})
}

// Component Data Methods

// Get retrieves data for a component by key
func (s *BoltStorage) Get(component, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		componentBucket := tx.Bucket([]byte(dataBucket)).Bucket([]byte(component))
		if componentBucket == nil {
			return ErrNotFound
		}

		data := componentBucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})

	return value, err
}

// GetInt retrieves int data for a component by key
func (s *BoltStorage) GetInt(component, key string) (int, error) {
	data, err := s.Get(component, key)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse int: %w", err)
	}

	return value, nil
}

// GetBool retrieves bool data for a component by key
func (s *BoltStorage) GetBool(component, key string) (bool, error) {
	data, err := s.Get(component, key)
	if err != nil {
		return false, err
	}

	value, err := strconv.ParseBool(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse bool: %w", err)
	}

	return value, nil
}

// Set stores data for a component by key
func (s *BoltStorage) Set(component, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		componentBucket, err := tx.Bucket([]byte(dataBucket)).CreateBucketIfNotExists([]byte(component))
		if err != nil {
			return fmt.Errorf("failed to create component bucket: %w", err)
		}

		return componentBucket.Put([]byte(key), value)
	})
}

// SetInt stores int data for a component by key
func (s *BoltStorage) SetInt(component, key string, value int) error {
	return s.Set(component, key, []byte(strconv.Itoa(value)))
}

// SetBool stores bool data for a component by key
func (s *BoltStorage) SetBool(component, key string, value bool) error {
	return s.Set(component, key, []byte(strconv.FormatBool(value)))
}

// Delete removes data for a component by key
func (s *BoltStorage) Delete(component, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		componentBucket := tx.Bucket([]byte(dataBucket)).Bucket([]byte(component))
		if componentBucket == nil {
			return ErrNotFound
		}

		return componentBucket.Delete([]byte(key))
	})
}

// List returns all keys and values for a component
func (s *BoltStorage) List(component string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := s.db.View(func(tx *bbolt.Tx) error {
		componentBucket := tx.Bucket([]byte(dataBucket)).Bucket([]byte(component))
		if componentBucket == nil {
			// Component has no data yet - return empty map
			return nil
		}

		return componentBucket.ForEach(func(k, v []byte) error {
			value := make([]byte, len(v))
			copy(value, v)
			result[string(k)] = value
			return nil
		})
	})

	return result, err
}

// Snapshot Methods

// SaveSnapshot stores snap under name
func (s *BoltStorage) SaveSnapshot(name string, snap *Snapshot) error {
	data, err := snapshotEncMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(snapshotBucket)).Put([]byte(name), data)
	})
}

// LoadSnapshot returns the snapshot stored under name
func (s *BoltStorage) LoadSnapshot(name string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(snapshotBucket)).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNoSnapshot, name)
		}

		snap = &Snapshot{}
		if err := snapshotDecMode.Unmarshal(data, snap); err != nil {
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
		return nil
	})

	return snap, err
}

// Close closes the storage
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
