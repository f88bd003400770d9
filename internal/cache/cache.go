// Package cache persists the last good reservation snapshot so the
// dashboard keeps working when the upstream is unreachable. The file holds
// exactly two entries: the serialized list and the time it was written.
package cache

import (
	"encoding/json"
	"errors"
	"time"

	"go.etcd.io/bbolt"

	"koiadmin/internal/reservation"
)

var (
	bucketName   = []byte("reservations")
	keySnapshot  = []byte("snapshot")
	keyWrittenAt = []byte("writtenAt")
)

// ErrNoSnapshot means the cache file has never been written.
var ErrNoSnapshot = errors.New("cache: no snapshot available")

type Cache struct {
	db *bbolt.DB
}

func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Save overwrites the snapshot and stamps it with the current time.
func (c *Cache) Save(list []reservation.Reservation) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put(keySnapshot, data); err != nil {
			return err
		}
		return b.Put(keyWrittenAt, []byte(time.Now().Format(time.RFC3339)))
	})
}

// Load returns the stored snapshot and when it was written. ErrNoSnapshot
// when nothing has ever been saved.
func (c *Cache) Load() ([]reservation.Reservation, time.Time, error) {
	var (
		raw     []byte
		stamped []byte
	)

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if data := b.Get(keySnapshot); data != nil {
			raw = make([]byte, len(data))
			copy(raw, data)
		}
		if data := b.Get(keyWrittenAt); data != nil {
			stamped = make([]byte, len(data))
			copy(stamped, data)
		}
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if raw == nil {
		return nil, time.Time{}, ErrNoSnapshot
	}

	var list []reservation.Reservation
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, time.Time{}, err
	}

	writtenAt, _ := time.Parse(time.RFC3339, string(stamped))
	return list, writtenAt, nil
}
