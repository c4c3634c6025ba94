package convert

import (
	"context"
	"sync"

	"trackstyler/core/engine"
	"trackstyler/core/format"
	"trackstyler/logger"
	"trackstyler/model"
)

// Status is the per-track conversion phase. Transitions:
// unstaged -> staging -> ready -> converting -> ready, with staging -> unstaged
// on failure and ready -> unstaged when the file identity changes.
type Status int

const (
	StatusUnstaged Status = iota
	StatusStaging
	StatusReady
	StatusConverting
)

func (s Status) String() string {
	switch s {
	case StatusUnstaged:
		return "unstaged"
	case StatusStaging:
		return "staging"
	case StatusReady:
		return "ready"
	case StatusConverting:
		return "converting"
	default:
		return "unknown"
	}
}

// Converter is the per-track state machine composing staging and conversion
// into a single guarded "convert now" operation. The state transitions are
// the single source of truth for readiness; duplicate or premature calls
// become no-ops instead of overlapping engine work.
type Converter struct {
	session      *engine.Session
	preparer     *Preparer
	orchestrator *Orchestrator
	track        *model.UploadedTrack
	sourceFormat format.Format

	mu     sync.Mutex
	status Status
}

// NewConverter builds the state machine for one uploaded track.
func NewConverter(session *engine.Session, preparer *Preparer, orchestrator *Orchestrator, track *model.UploadedTrack, sourceFormat format.Format) *Converter {
	return &Converter{
		session:      session,
		preparer:     preparer,
		orchestrator: orchestrator,
		track:        track,
		sourceFormat: sourceFormat,
		status:       StatusUnstaged,
	}
}

// Status returns the current phase.
func (c *Converter) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsReady reports whether a conversion may start now.
func (c *Converter) IsReady() bool {
	return c.Status() == StatusReady
}

// IsBusy reports whether a staging or conversion is in flight.
func (c *Converter) IsBusy() bool {
	s := c.Status()
	return s == StatusStaging || s == StatusConverting
}

// SourceFormat returns the track's source format, fixed at upload time.
func (c *Converter) SourceFormat() format.Format {
	return c.sourceFormat
}

// Stage moves the track from unstaged to ready. Calls while staged or busy
// are no-ops. On failure the track returns to unstaged, permitting retry.
func (c *Converter) Stage(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusUnstaged {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusStaging
	c.mu.Unlock()

	err := c.preparer.Stage(ctx, c.track, c.sourceFormat)

	c.mu.Lock()
	if c.status == StatusStaging {
		if err != nil {
			c.status = StatusUnstaged
		} else {
			c.status = StatusReady
		}
	}
	c.mu.Unlock()
	return err
}

// ConvertTrack runs the conversion for the current track. It is a no-op
// returning (nil, nil) unless the track is ready; the ready state is
// restored when the conversion finishes, regardless of success or failure.
func (c *Converter) ConvertTrack(ctx context.Context, target format.Format, meta model.TrackMetadata) (*model.Blob, error) {
	c.mu.Lock()
	if c.status != StatusReady {
		logger.Debug("convert skipped, track not ready",
			logger.String("trackId", c.track.ID),
			logger.String("status", c.status.String()))
		c.mu.Unlock()
		return nil, nil
	}
	c.status = StatusConverting
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		// Reset may have fired mid-conversion; only a still-converting
		// track returns to ready.
		if c.status == StatusConverting {
			c.status = StatusReady
		}
		c.mu.Unlock()
	}()

	return c.orchestrator.Convert(ctx, StagedPath(c.track, c.sourceFormat), c.sourceFormat, target, meta)
}

// Reset invalidates the staging, e.g. when the underlying file identity
// changes or the track is removed. An in-flight conversion runs to
// completion; its result is the caller's to discard.
func (c *Converter) Reset() {
	c.preparer.Invalidate(c.track.ID)
	c.mu.Lock()
	c.status = StatusUnstaged
	c.mu.Unlock()
}
