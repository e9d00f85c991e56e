package service

import "sync"

// deviceLocks serializes the detector's read-modify-write section per
// device. Calls for different devices never contend.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire locks the mutex for a device and returns its unlock func.
func (d *deviceLocks) acquire(deviceID int64) func() {
	d.mu.Lock()
	m, ok := d.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		d.locks[deviceID] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}
