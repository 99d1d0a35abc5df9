// Package store persists a journal of synchronization outcomes in
// BoltDB so callers can inspect the last result per title.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSync = []byte("sync")

// SyncRecord is the journal entry for one completed synchronization.
type SyncRecord struct {
	TitleID  uint64    `json:"title_id"`
	BuildID  uint64    `json:"build_id"`
	Result   string    `json:"result"`
	Success  bool      `json:"success"`
	SyncedAt time.Time `json:"synced_at"`
}

// Journal records the last synchronization outcome per title.
type Journal struct {
	db *bolt.DB
}

// Open opens (or creates) the journal database under dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "boxcat.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSync)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores the outcome of a synchronization, replacing any
// previous record for the title.
func (j *Journal) Record(rec SyncRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSync).Put(titleKey(rec.TitleID), data)
	})
}

// Last returns the most recent record for a title, if any.
func (j *Journal) Last(titleID uint64) (SyncRecord, bool) {
	var data []byte
	j.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSync).Get(titleKey(titleID)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return SyncRecord{}, false
	}

	var rec SyncRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SyncRecord{}, false
	}
	return rec, true
}

// Forget removes the record for a title.
func (j *Journal) Forget(titleID uint64) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSync).Delete(titleKey(titleID))
	})
}

func titleKey(titleID uint64) []byte {
	return []byte(fmt.Sprintf("%016X", titleID))
}
