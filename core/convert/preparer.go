package convert

import (
	"context"
	"fmt"
	"sync"

	"trackstyler/core/engine"
	"trackstyler/core/format"
	"trackstyler/logger"
	"trackstyler/model"
)

// StagedPath is the engine storage name a track's bytes are staged under.
// Keyed by the upload id, so a replaced file (new id) never aliases the old
// staging.
func StagedPath(track *model.UploadedTrack, sourceFormat format.Format) string {
	return fmt.Sprintf("%s__input.%s", track.ID, sourceFormat)
}

// Preparer stages track bytes into engine storage exactly once per upload
// id. Concurrent Stage calls for the same id collapse into one write.
type Preparer struct {
	session *engine.Session

	mu       sync.Mutex
	staged   map[string]bool
	inFlight map[string]bool
}

// NewPreparer creates a Preparer bound to the shared engine session.
func NewPreparer(session *engine.Session) *Preparer {
	return &Preparer{
		session:  session,
		staged:   make(map[string]bool),
		inFlight: make(map[string]bool),
	}
}

// IsStaged reports whether the id's bytes are in engine storage.
func (p *Preparer) IsStaged(trackID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staged[trackID]
}

// Invalidate forgets a track's staging, e.g. when it is removed from the
// upload list.
func (p *Preparer) Invalidate(trackID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.staged, trackID)
}

// Stage writes the track's bytes into engine storage at its staged path.
// No-ops when the id is already staged or a staging for it is in flight.
// On failure the id stays unstaged so the caller may retry.
func (p *Preparer) Stage(ctx context.Context, track *model.UploadedTrack, sourceFormat format.Format) error {
	p.mu.Lock()
	if p.staged[track.ID] || p.inFlight[track.ID] {
		p.mu.Unlock()
		return nil
	}
	p.inFlight[track.ID] = true
	p.mu.Unlock()

	// The in-flight marker must clear on every path, or the track is stuck
	// forever.
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, track.ID)
		p.mu.Unlock()
	}()

	if err := p.session.EnsureLoaded(ctx); err != nil {
		return err
	}

	path := StagedPath(track, sourceFormat)
	logger.Debug("staging track into engine storage",
		logger.String("trackId", track.ID),
		logger.String("path", path))

	if err := p.session.Engine().WriteFile(ctx, path, track.Data); err != nil {
		logger.Error("staging failed",
			logger.String("trackId", track.ID),
			logger.ErrorField(err))
		return &StagingError{TrackID: track.ID, Err: err}
	}

	p.mu.Lock()
	p.staged[track.ID] = true
	p.mu.Unlock()
	return nil
}
