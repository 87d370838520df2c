package controlpoint

import "sync"

// Shared guards a Timeline for use from several goroutines: any number of
// readers, or one writer.
type Shared struct {
	mu sync.RWMutex
	tl *Timeline
}

func NewShared(tl *Timeline) *Shared {
	if tl == nil {
		tl = New()
	}
	return &Shared{tl: tl}
}

// Read runs fn with shared access. fn must only query.
func (s *Shared) Read(fn func(tl *Timeline)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.tl)
}

// Write runs fn with exclusive access.
func (s *Shared) Write(fn func(tl *Timeline)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tl)
}

// Snapshot returns a private copy taken under the read lock.
func (s *Shared) Snapshot() *Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tl.Clone()
}
