// Package store owns the in-memory reservation collection. It is the only
// place that mutates reservation state: Remote Sync replaces the whole list,
// action handlers patch single records optimistically until the next full
// refresh confirms or overwrites them.
package store

import (
	"strings"
	"sync"
	"time"

	"koiadmin/internal/reservation"
)

type Store struct {
	mu        sync.RWMutex
	items     []reservation.Reservation
	loaded    bool
	loadedAt  time.Time
	fromCache bool
}

func New() *Store {
	return &Store{}
}

// ReplaceAll swaps the full contents. fromCache marks the data as coming
// from the durable snapshot rather than a live fetch, which drives the
// offline indicator.
func (s *Store) ReplaceAll(items []reservation.Reservation, fromCache bool) {
	copied := make([]reservation.Reservation, len(items))
	copy(copied, items)
	for i := range copied {
		copied[i].EnsureID()
	}

	s.mu.Lock()
	s.items = copied
	s.loaded = true
	s.loadedAt = time.Now()
	s.fromCache = fromCache
	s.mu.Unlock()
}

// Snapshot returns a copy of the current list. Callers may filter and sort
// it freely without affecting the store.
func (s *Store) Snapshot() []reservation.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reservation.Reservation, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loaded reports whether any load (live or cached) has happened yet.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// FromCache reports whether the current contents came from the durable
// snapshot instead of a live fetch.
func (s *Store) FromCache() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fromCache
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Find returns the reservation with the given id. Ids are compared as
// strings since the upstream sends numeric ids for older rows.
func (s *Store) Find(id string) (reservation.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.items {
		if string(r.ID) == strings.TrimSpace(id) {
			return r, true
		}
	}
	return reservation.Reservation{}, false
}

// MarkCancelled flips a record to Cancellata in place. Returns false when
// the id no longer matches anything.
func (s *Store) MarkCancelled(id string) bool {
	return s.patch(id, func(r *reservation.Reservation) {
		r.Stato = reservation.StatoCancellata
	})
}

// MarkWhatsAppSent records that a confirmation went out.
func (s *Store) MarkWhatsAppSent(id string) bool {
	return s.patch(id, func(r *reservation.Reservation) {
		r.WaInviato = true
	})
}

// ApplyEdit overwrites a record's editable fields with the given values.
func (s *Store) ApplyEdit(updated reservation.Reservation) bool {
	return s.patch(string(updated.ID), func(r *reservation.Reservation) {
		r.Nome = updated.Nome
		r.Cognome = updated.Cognome
		r.Telefono = updated.Telefono
		r.Email = updated.Email
		r.Data = updated.Data
		r.Orario = updated.Orario
		r.Persone = updated.Persone
		r.Note = updated.Note
	})
}

func (s *Store) patch(id string, fn func(*reservation.Reservation)) bool {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if string(s.items[i].ID) == id {
			fn(&s.items[i])
			return true
		}
	}
	return false
}
