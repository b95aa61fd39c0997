package indexer

import "sync/atomic"

// IndexLock refuses overlapping ingestion passes without blocking.
// The zero value is unlocked.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Held reports whether a pass is running
func (l *IndexLock) Held() bool {
	return l.held.Load()
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}
