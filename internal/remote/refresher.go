package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"koiadmin/internal/cache"
	"koiadmin/internal/store"
)

// ErrNoData means a fetch failed and no durable snapshot exists either:
// there is genuinely nothing to show.
var ErrNoData = errors.New("remote: no data available")

// Status describes the sync state the dashboard's offline indicator needs.
type Status struct {
	Loaded    bool      `json:"loaded"`
	Offline   bool      `json:"offline"`
	Count     int       `json:"count"`
	LastSync  time.Time `json:"lastSync"`
	CacheTime time.Time `json:"cacheTime"`
}

// Refresher keeps the store in sync with the backend. At most one refresh
// is ever in flight; requests arriving while one runs are no-ops.
type Refresher struct {
	client   *Client
	store    *store.Store
	cache    *cache.Cache
	interval time.Duration

	inFlight atomic.Bool

	mu        sync.Mutex
	offline   bool
	lastSync  time.Time
	cacheTime time.Time

	onUpdate func(fromCache bool, count int)
}

func NewRefresher(client *Client, st *store.Store, ca *cache.Cache, interval time.Duration) *Refresher {
	return &Refresher{
		client:   client,
		store:    st,
		cache:    ca,
		interval: interval,
	}
}

// SetOnUpdate registers a callback fired after every store replacement,
// used to broadcast to WebSocket clients.
func (r *Refresher) SetOnUpdate(fn func(fromCache bool, count int)) {
	r.onUpdate = fn
}

// Refresh fetches the full list and replaces the store. On transport or
// malformed-response failure it falls back to the durable snapshot and
// flags the dashboard offline; ErrNoData when there is no snapshot either.
// A call while another refresh is in flight returns immediately.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer r.inFlight.Store(false)

	list, err := r.client.Lista(ctx)
	if err == nil {
		r.store.ReplaceAll(list, false)

		// An empty fetch never clobbers the last good snapshot.
		if len(list) > 0 {
			if saveErr := r.cache.Save(list); saveErr != nil {
				log.Printf("refresh: cache save failed: %v", saveErr)
			}
		}

		r.mu.Lock()
		r.offline = false
		r.lastSync = time.Now()
		r.mu.Unlock()

		if r.onUpdate != nil {
			r.onUpdate(false, len(list))
		}
		return nil
	}

	// A failure the backend reported itself is not a connectivity problem;
	// surface it without touching the store.
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return err
	}

	cached, writtenAt, cacheErr := r.cache.Load()
	if cacheErr != nil {
		if !errors.Is(cacheErr, cache.ErrNoSnapshot) {
			log.Printf("refresh: cache load failed: %v", cacheErr)
		}
		return fmt.Errorf("%w: %v", ErrNoData, err)
	}

	log.Printf("refresh: fetch failed (%v), serving %d cached reservations from %s",
		err, len(cached), writtenAt.Format(time.RFC3339))

	r.store.ReplaceAll(cached, true)

	r.mu.Lock()
	r.offline = true
	r.cacheTime = writtenAt
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(true, len(cached))
	}
	return nil
}

// Run refreshes immediately and then on every interval tick until the
// context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		log.Printf("refresh: initial load: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				log.Printf("refresh: %v", err)
			}
		}
	}
}

// WaitReady polls until the store has data or the attempt budget runs out.
// A bounded budget replaces the old unbounded re-poll loop so a dead
// upstream produces a terminal error instead of polling forever.
func (r *Refresher) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if r.store.Loaded() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("remote: store not ready after %d attempts", attempts)
}

// Status reports the current sync state.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	offline, lastSync, cacheTime := r.offline, r.lastSync, r.cacheTime
	r.mu.Unlock()

	return Status{
		Loaded:    r.store.Loaded(),
		Offline:   offline,
		Count:     r.store.Len(),
		LastSync:  lastSync,
		CacheTime: cacheTime,
	}
}
