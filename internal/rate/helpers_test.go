package rate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// mapStore is a minimal mutex-guarded Store used to test the evaluator in
// isolation from the real backends.
type mapStore struct {
	mu   sync.Mutex
	recs map[Key]Record
	err  error
}

func newMapStore() *mapStore {
	return &mapStore{recs: make(map[Key]Record)}
}

func (s *mapStore) Get(_ context.Context, key Key) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Record{}, false, s.err
	}
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *mapStore) Update(_ context.Context, key Key, fn Mutator) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Record{}, s.err
	}
	cur, found := s.recs[key]
	next, keep := fn(cur, found)
	if !keep {
		delete(s.recs, key)
		return Record{}, nil
	}
	s.recs[key] = next
	return next, nil
}

func (s *mapStore) Delete(_ context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.recs[key]
	delete(s.recs, key)
	return ok, nil
}

func (s *mapStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs), s.err
}

func (s *mapStore) Range(_ context.Context, fn func(Key, Record) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.recs {
		if !fn(k, r) {
			break
		}
	}
	return s.err
}

// fakeLog is an in-memory AttemptLog.
type fakeLog struct {
	mu       sync.Mutex
	attempts map[Key][]time.Time
	err      error
}

func newFakeLog() *fakeLog {
	return &fakeLog{attempts: make(map[Key][]time.Time)}
}

func (l *fakeLog) LoadAttempts(_ context.Context, key Key, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	n := 0
	for _, at := range l.attempts[key] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *fakeLog) AppendAttempt(_ context.Context, key Key, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.attempts[key] = append(l.attempts[key], at)
	return nil
}

func (l *fakeLog) DeleteAttempts(_ context.Context, key Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	delete(l.attempts, key)
	return nil
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")
