package store

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultMaxBytes mirrors the ~5MB quota of a browser origin store.
	DefaultMaxBytes = 5 * 1024 * 1024

	// CapacityWarning is the user-facing message surfaced when a write is
	// rejected for capacity. Callers attach it to their responses.
	CapacityWarning = "Storage is full! Could not save data. Please delete old characters or images to free space."
)

// ErrCapacityExceeded is returned when a write would push the total stored
// bytes past the configured ceiling. The previous value of the key is left
// untouched.
var ErrCapacityExceeded = errors.New("store: capacity exceeded")

// Entry is one key/value row. Values are opaque serialized blobs; writes
// are atomic at single-key granularity, last write wins.
type Entry struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// Notifier receives user-facing storage warnings. The default notifier
// just logs; the HTTP layer passes warnings through in responses instead.
type Notifier func(message string)

type Store struct {
	db       *gorm.DB
	maxBytes int64
	notify   Notifier
}

func New(db *gorm.DB, maxBytes int64, notify Notifier) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if notify == nil {
		notify = func(message string) {
			log.Printf("Storage warning: %s", message)
		}
	}
	return &Store{db: db, maxBytes: maxBytes, notify: notify}, nil
}

// Get returns the raw value for key and whether it exists.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var entry Entry
	if err := s.db.First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value, true, nil
}

// GetJSON unmarshals the value for key into v.
func (s *Store) GetJSON(key string, v interface{}) (bool, error) {
	raw, found, err := s.Get(key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, err
	}
	return true, nil
}

// Set writes value under key, enforcing the capacity ceiling. A rejected
// write leaves the previously stored value unchanged.
func (s *Store) Set(key string, value []byte) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var used int64
		err := tx.Model(&Entry{}).
			Where("key <> ?", key).
			Select("COALESCE(SUM(LENGTH(value)), 0)").
			Scan(&used).Error
		if err != nil {
			return err
		}

		if used+int64(len(value)) > s.maxBytes {
			return ErrCapacityExceeded
		}

		entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error
	})
}

// SetJSON marshals v and writes it under key.
func (s *Store) SetJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, raw)
}

// SafeWrite marshals v and attempts the write, converting every failure
// into a boolean plus a user-facing notification. Capacity errors and any
// other store fault are treated uniformly: the store offers no finer error
// taxonomy worth distinguishing for callers.
func (s *Store) SafeWrite(key string, v interface{}) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("Store save error for %s: %v", key, err)
		s.notify(CapacityWarning)
		return false
	}
	if err := s.Set(key, raw); err != nil {
		log.Printf("Store save error for %s: %v", key, err)
		s.notify(CapacityWarning)
		return false
	}
	return true
}

func (s *Store) Delete(key string) error {
	return s.db.Delete(&Entry{}, "key = ?", key).Error
}

// Keys lists all stored keys with the given prefix.
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.Model(&Entry{}).
		Where("key LIKE ?", prefix+"%").
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}

// UsedBytes reports the total stored payload size.
func (s *Store) UsedBytes() (int64, error) {
	var used int64
	err := s.db.Model(&Entry{}).
		Select("COALESCE(SUM(LENGTH(value)), 0)").
		Scan(&used).Error
	return used, err
}
