// Package slotlock serializes writers contending for the same booking slot or
// payment pair. The store re-checks every invariant inside its transaction, so
// a lock only narrows the race window and keeps losers failing fast.
package slotlock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const ns = "shuttlers:v1"

// KeySlot names the (venue, date, court) slot lock.
func KeySlot(venueID int64, date time.Time, court int) string {
	return fmt.Sprintf("%s:slot:%d:%s:%d", ns, venueID, models.DateKey(date), court)
}

// KeyPayment names the (booking, payer) submission lock.
func KeyPayment(bookingID, participantID int64) string {
	return fmt.Sprintf("%s:payment:%d:%d", ns, bookingID, participantID)
}

// Locker acquires exclusive named locks. The returned release function must
// be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// LockAll acquires every distinct key in sorted order so two callers locking
// overlapping sets cannot deadlock.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		release, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(key, e)
		})
	}, nil
}

func (l *Local) drop(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
