package server

import (
	"sync"

	"trackstyler/core/convert"
	"trackstyler/core/format"
	"trackstyler/model"
)

// TrackEntry bundles one upload with its editing state and per-track
// conversion state machine.
type TrackEntry struct {
	Upload       *model.UploadedTrack
	SourceFormat format.Format
	Form         *model.TrackFormState
	Converter    *convert.Converter
}

// TrackStore is the in-memory upload list for the current session. Tracks
// live here from upload until removal; nothing is persisted.
type TrackStore struct {
	mu      sync.RWMutex
	entries map[string]*TrackEntry
	order   []string
}

// NewTrackStore creates an empty store.
func NewTrackStore() *TrackStore {
	return &TrackStore{entries: make(map[string]*TrackEntry)}
}

// Add registers a new entry under its upload id.
func (s *TrackStore) Add(entry *TrackEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := entry.Upload.ID
	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = entry
}

// TrackSnapshot is a read-consistent copy of one entry's mutable state,
// taken under the store lock. Form fields and probed metadata are written
// through Update, so readers derive state from a snapshot, never from the
// live entry.
type TrackSnapshot struct {
	Upload       *model.UploadedTrack
	SourceFormat format.Format
	Form         *model.TrackFormState
	Converter    *convert.Converter
}

// snapshotLocked copies the fields Update may touch. The upload's raw bytes
// and any cover/metadata objects are immutable once attached, so copying
// their pointers under the lock is enough.
func snapshotLocked(entry *TrackEntry) TrackSnapshot {
	upload := *entry.Upload
	snap := TrackSnapshot{
		Upload:       &upload,
		SourceFormat: entry.SourceFormat,
		Converter:    entry.Converter,
	}
	if entry.Form != nil {
		form := *entry.Form
		snap.Form = &form
	}
	return snap
}

// Snapshot returns a read-consistent copy of the entry for an id.
func (s *TrackStore) Snapshot(id string) (TrackSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return TrackSnapshot{}, false
	}
	return snapshotLocked(entry), true
}

// Snapshots returns read-consistent copies of all entries in upload order.
func (s *TrackStore) Snapshots() []TrackSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]TrackSnapshot, 0, len(s.order))
	for _, id := range s.order {
		if entry, ok := s.entries[id]; ok {
			snaps = append(snaps, snapshotLocked(entry))
		}
	}
	return snaps
}

// Has reports whether the id is still in the list. Used to guard state
// updates after awaited operations against removed tracks.
func (s *TrackStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Remove drops an entry and returns it. The entry's in-flight operations, if
// any, run to completion; their results are discarded by the callers.
func (s *TrackStore) Remove(id string) (*TrackEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return entry, true
}

// Update applies fn to the entry under the store lock.
func (s *TrackStore) Update(id string, fn func(*TrackEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	fn(entry)
	return true
}
