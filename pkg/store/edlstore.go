// Package store holds the single accepted EDL snapshot behind a mutex,
// serializing writers while letting readers proceed concurrently once
// they have their own copy.
package store

import (
	"sync"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/canonicalize"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/medialib"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/validator"
)

// EdlStore holds at most one accepted snapshot. The zero value is the same
// empty store that New returns.
type EdlStore struct {
	mu   sync.Mutex
	snap *edl.Snapshot

	// probe is injected for tests; production callers leave it nil so
	// Replace defaults to medialib.ProbeFile.
	probe medialib.ProbeFunc
}

// New returns an empty store.
func New() *EdlStore {
	return &EdlStore{}
}

// NewWithProbe returns an empty store that resolves media through probe
// instead of touching the filesystem, for tests.
func NewWithProbe(probe medialib.ProbeFunc) *EdlStore {
	return &EdlStore{probe: probe}
}

// Replace validates candidate under the store's exclusive lock, stamps a
// freshly computed revision into it, and installs it as the current
// snapshot. On validation failure the previous snapshot (if any) is left
// untouched.
func (s *EdlStore) Replace(candidate edl.Edl) (edl.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := validator.Validate(candidate, s.probe)
	if err != nil {
		return edl.Snapshot{}, err
	}

	rev, err := canonicalize.Revision(snap.Edl)
	if err != nil {
		return edl.Snapshot{}, edl.NewError(edl.KindCompilationFailed, "revision hashing failed: "+err.Error(), candidate.ID)
	}
	snap.Edl.Revision = rev
	snap.Revision = rev

	s.snap = &snap
	return snap, nil
}

// Get returns the current snapshot and true, or the zero Snapshot and
// false if no EDL has been accepted yet. The returned Snapshot is a value
// copy, safe to use without holding any lock.
func (s *EdlStore) Get() (edl.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return edl.Snapshot{}, false
	}
	return *s.snap, true
}

// Has reports whether a snapshot is currently installed.
func (s *EdlStore) Has() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap != nil
}
