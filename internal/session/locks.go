// ABOUTME: Refcounted per-device locks serializing turns for one device
// ABOUTME: Distinct devices proceed in parallel; waiters honor context cancellation

package session

import (
	"context"
	"sync"
)

// deviceLock is a one-slot semaphore with a reference count so idle
// entries can be removed from the map.
type deviceLock struct {
	sem  chan struct{}
	refs int
}

// deviceLocks hands out mutual exclusion keyed by device ID. Turns for the
// same device queue up; turns for different devices never contend.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[string]*deviceLock
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{
		locks: make(map[string]*deviceLock),
	}
}

// acquire blocks until the device's lock is held or ctx is cancelled.
// On success it returns a release func that must be called exactly once.
func (d *deviceLocks) acquire(ctx context.Context, deviceID string) (func(), error) {
	d.mu.Lock()
	entry, ok := d.locks[deviceID]
	if !ok {
		entry = &deviceLock{sem: make(chan struct{}, 1)}
		d.locks[deviceID] = entry
	}
	entry.refs++
	d.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			d.unref(deviceID)
		}, nil
	case <-ctx.Done():
		d.unref(deviceID)
		return nil, ctx.Err()
	}
}

// unref drops one reference and removes the map entry once nobody holds or
// waits on it.
func (d *deviceLocks) unref(deviceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.locks[deviceID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(d.locks, deviceID)
	}
}
