package model

import (
	"strings"

	"trackstyler/core/format"
)

// TrackState is the derived, render-time view of a track. It is recomputed
// from the form state and the upload on demand and never stored.
type TrackState struct {
	TrackFormState

	CleanTitle       string        `json:"cleanTitle"`
	CleanArtist      string        `json:"cleanArtist"`
	CleanRecordLabel string        `json:"cleanRecordLabel"`
	CleanAlbum       string        `json:"cleanAlbum"`
	NewFileName      string        `json:"newFileName"` // excludes the extension
	SourceFormat     format.Format `json:"sourceFormat"`
	TargetFormat     format.Format `json:"targetFormat"`
	HasAlbumCover    bool          `json:"hasAlbumCover"`
}

// ActiveCover returns the album cover to preview and embed checks run
// against: a newly supplied cover overrides the probed one.
func ActiveCover(form *TrackFormState, track *UploadedTrack) *CoverImage {
	if form != nil && form.AlbumCover != nil {
		return form.AlbumCover
	}
	if track.Metadata != nil {
		return track.Metadata.AlbumCover
	}
	return nil
}

// Derive computes the TrackState for one track. The source format is fixed
// for the track's lifetime; the target format falls back to it when no
// format was selected.
func Derive(form *TrackFormState, track *UploadedTrack, sourceFormat format.Format) TrackState {
	if form == nil {
		form = DefaultFormState(track, sourceFormat)
	}

	cleanTitle := strings.TrimSpace(form.Title)
	cleanArtist := strings.TrimSpace(form.Artist)
	cleanRecordLabel := strings.TrimSpace(form.RecordLabel)
	cleanAlbum := strings.TrimSpace(form.Album)

	var newFileName string
	if cleanTitle != "" && cleanArtist != "" {
		newFileName = format.SerializeFileName(cleanTitle, cleanArtist, cleanRecordLabel)
	} else {
		newFileName = format.RemoveExtension(track.Name)
	}

	targetFormat := form.SelectedFormat
	if targetFormat == "" {
		targetFormat = sourceFormat
	}

	return TrackState{
		TrackFormState:   *form,
		CleanTitle:       cleanTitle,
		CleanArtist:      cleanArtist,
		CleanRecordLabel: cleanRecordLabel,
		CleanAlbum:       cleanAlbum,
		NewFileName:      newFileName,
		SourceFormat:     sourceFormat,
		TargetFormat:     targetFormat,
		HasAlbumCover:    ActiveCover(form, track) != nil,
	}
}

// ConvertMetadata builds the tag set handed to the conversion pipeline from
// a derived state: trimmed text fields and only a newly supplied cover (a
// probed cover is already embedded in the source and needs no Plan B pass).
func ConvertMetadata(state TrackState) TrackMetadata {
	return TrackMetadata{
		Title:      state.CleanTitle,
		Artist:     state.CleanArtist,
		Album:      state.CleanAlbum,
		Publisher:  state.CleanRecordLabel,
		AlbumCover: state.AlbumCover,
	}
}
