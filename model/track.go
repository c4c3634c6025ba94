package model

import (
	"time"

	"github.com/google/uuid"

	"trackstyler/core/format"
)

// CoverImage is an album cover held in memory.
type CoverImage struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Data []byte `json:"-"`
}

// TrackMetadata holds the textual tags and the cover recovered from a file,
// or the tags the user wants written into the output.
type TrackMetadata struct {
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	Album      string      `json:"album"`
	Publisher  string      `json:"publisher"`
	AlbumCover *CoverImage `json:"-"`
}

// UploadedTrack pairs a fresh unique id with the raw bytes of one upload.
// The pairing is immutable; replacing a file means a new id.
type UploadedTrack struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"` // original filename
	Data       []byte         `json:"-"`
	Metadata   *TrackMetadata `json:"metadata,omitempty"` // probed, may stay nil
	UploadedAt time.Time      `json:"uploadedAt"`
}

// NewUploadedTrack assigns a fresh id to an uploaded file.
func NewUploadedTrack(name string, data []byte) *UploadedTrack {
	return &UploadedTrack{
		ID:         uuid.NewString(),
		Name:       name,
		Data:       data,
		UploadedAt: time.Now(),
	}
}

// TrackFormState is the user-editable per-track state. It is created lazily
// on first edit; defaults come from probed metadata.
type TrackFormState struct {
	Title          string        `json:"title"`
	Artist         string        `json:"artist"`
	RecordLabel    string        `json:"recordLabel"`
	Album          string        `json:"album"`
	SelectedFormat format.Format `json:"selectedFormat"`
	AlbumCover     *CoverImage   `json:"-"` // new cover overriding the probed one
}

// DefaultFormState builds the initial form state for a track from its probed
// metadata, or blanks when nothing was probed.
func DefaultFormState(track *UploadedTrack, sourceFormat format.Format) *TrackFormState {
	state := &TrackFormState{SelectedFormat: sourceFormat}
	if track.Metadata != nil {
		state.Title = track.Metadata.Title
		state.Artist = track.Metadata.Artist
		state.Album = track.Metadata.Album
		state.RecordLabel = track.Metadata.Publisher
	}
	return state
}

// Blob is an encoded output tagged with its MIME type.
type Blob struct {
	Data []byte
	MIME string
}
