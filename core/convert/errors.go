package convert

import (
	"fmt"
	"strings"
)

// StagingError reports a failure while copying a track's bytes into engine
// storage. The track stays unstaged so the caller may retry.
type StagingError struct {
	TrackID string
	Err     error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("failed to stage track %s: %v", e.TrackID, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// ProbeError reports a failure while extracting text metadata from a track.
// Cover-extraction failures are never surfaced as errors.
type ProbeError struct {
	TrackID string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("failed to probe track %s: %v", e.TrackID, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ConversionError reports a failed engine command during conversion, carrying
// the attempted argv for diagnosis.
type ConversionError struct {
	Args []string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed: %v (command: %s)", e.Err, strings.Join(e.Args, " "))
}

func (e *ConversionError) Unwrap() error { return e.Err }
