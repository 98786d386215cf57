// Package lock serializes work on a single file across goroutines and, with Redis, across instances.
package lock

import (
	"context"
	"fmt"
	"sync"

	"filetrack/internal/models"
)

// Locker hands out exclusive per-key locks. The returned release function is idempotent.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// FileKey is the lock key guarding a file.
func FileKey(fileID uint) string {
	return fmt.Sprintf("lock:file:%d", fileID)
}

// DeskScopeKey guards desk capacity and provisioning across a department.
// Order: file key, then scope key, then desk key.
func DeskScopeKey(departmentID uint) string {
	return fmt.Sprintf("lock:deskscope:%d", departmentID)
}

// DeskKey is the lock key guarding a single desk. Take it after the scope key, never before.
func DeskKey(deskID uint) string {
	return fmt.Sprintf("lock:desk:%d", deskID)
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed lock. Waiters give up when their context is done.
type Local struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*keyEntry)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, models.NewConflictError(fmt.Sprintf("timed out waiting for %s", key))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(key, e)
		})
	}, nil
}

func (l *Local) drop(key string, e *keyEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
