package model

import (
	"testing"

	"trackstyler/core/format"
)

func TestDeriveFileName(t *testing.T) {
	track := &UploadedTrack{ID: "t1", Name: "original take.wav"}

	tests := []struct {
		name string
		form *TrackFormState
		want string
	}{
		{
			"artist and title",
			&TrackFormState{Title: "My Song", Artist: "Artsy"},
			"Artsy - My Song",
		},
		{
			"with record label",
			&TrackFormState{Title: "My Song", Artist: "Artsy", RecordLabel: "Label"},
			"Artsy - My Song [Label]",
		},
		{
			"fields trimmed before use",
			&TrackFormState{Title: "  My Song ", Artist: " Artsy "},
			"Artsy - My Song",
		},
		{
			"missing title falls back to upload name",
			&TrackFormState{Artist: "Artsy"},
			"original take",
		},
		{
			"missing artist falls back to upload name",
			&TrackFormState{Title: "My Song"},
			"original take",
		},
	}
	for _, tt := range tests {
		got := Derive(tt.form, track, format.WAV)
		if got.NewFileName != tt.want {
			t.Errorf("%s: NewFileName = %q, want %q", tt.name, got.NewFileName, tt.want)
		}
	}
}

func TestDeriveTargetFormatFallback(t *testing.T) {
	track := &UploadedTrack{ID: "t1", Name: "track.aiff"}

	state := Derive(&TrackFormState{}, track, format.AIFF)
	if state.TargetFormat != format.AIFF {
		t.Errorf("TargetFormat = %q, want fallback to source %q", state.TargetFormat, format.AIFF)
	}

	state = Derive(&TrackFormState{SelectedFormat: format.MP3}, track, format.AIFF)
	if state.TargetFormat != format.MP3 {
		t.Errorf("TargetFormat = %q, want selected %q", state.TargetFormat, format.MP3)
	}
	if state.SourceFormat != format.AIFF {
		t.Errorf("SourceFormat = %q, want %q", state.SourceFormat, format.AIFF)
	}
}

func TestDeriveNilFormUsesProbedDefaults(t *testing.T) {
	track := &UploadedTrack{
		ID:   "t1",
		Name: "track.flac",
		Metadata: &TrackMetadata{
			Title:     "Probed Title",
			Artist:    "Probed Artist",
			Publisher: "Probed Label",
		},
	}

	state := Derive(nil, track, format.FLAC)
	if state.CleanTitle != "Probed Title" || state.CleanArtist != "Probed Artist" {
		t.Errorf("derived state did not pick up probed defaults: %+v", state)
	}
	if state.RecordLabel != "Probed Label" {
		t.Errorf("RecordLabel = %q, want probed publisher", state.RecordLabel)
	}
}

func TestActiveCover(t *testing.T) {
	probed := &CoverImage{Name: "probed.jpg"}
	fresh := &CoverImage{Name: "fresh.jpg"}

	track := &UploadedTrack{ID: "t1", Name: "track.aiff", Metadata: &TrackMetadata{AlbumCover: probed}}

	if got := ActiveCover(nil, track); got != probed {
		t.Errorf("ActiveCover(nil form) = %v, want probed cover", got)
	}
	if got := ActiveCover(&TrackFormState{}, track); got != probed {
		t.Errorf("ActiveCover(empty form) = %v, want probed cover", got)
	}
	if got := ActiveCover(&TrackFormState{AlbumCover: fresh}, track); got != fresh {
		t.Errorf("ActiveCover(new cover) = %v, want new cover", got)
	}
	if got := ActiveCover(nil, &UploadedTrack{ID: "t2", Name: "bare.wav"}); got != nil {
		t.Errorf("ActiveCover(no covers) = %v, want nil", got)
	}
}

func TestConvertMetadataOnlyNewCover(t *testing.T) {
	probed := &CoverImage{Name: "probed.jpg"}
	track := &UploadedTrack{ID: "t1", Name: "track.aiff", Metadata: &TrackMetadata{AlbumCover: probed}}

	state := Derive(&TrackFormState{Title: "T", Artist: "A"}, track, format.AIFF)
	meta := ConvertMetadata(state)
	if meta.AlbumCover != nil {
		t.Errorf("ConvertMetadata carried the probed cover; want nil so the existing artwork is kept as-is")
	}
	if !state.HasAlbumCover {
		t.Error("HasAlbumCover = false, want true for a track with probed artwork")
	}
}
