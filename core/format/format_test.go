package format

import (
	"errors"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"track.wav", WAV},
		{"track.mp3", MP3},
		{"track.aif", AIFF},
		{"track.aiff", AIFF},
		{"track.flac", FLAC},
		{"some.dir/deep.name.flac", FLAC},
	}
	for _, tt := range tests {
		got, err := Detect(tt.filename)
		if err != nil {
			t.Errorf("Detect(%q) returned error: %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestDetectUnsupported(t *testing.T) {
	for _, filename := range []string{"track.ogg", "track.m4a", "track", "movie.mp4"} {
		_, err := Detect(filename)
		if err == nil {
			t.Errorf("Detect(%q) = nil error, want UnsupportedFormatError", filename)
			continue
		}
		var ufe *UnsupportedFormatError
		if !errors.As(err, &ufe) {
			t.Errorf("Detect(%q) error type = %T, want *UnsupportedFormatError", filename, err)
		}
	}
}

func TestMIME(t *testing.T) {
	tests := []struct {
		f    Format
		want string
	}{
		{WAV, "audio/wav"},
		{AIFF, "audio/aiff"},
		{MP3, "audio/mp3"},
		{FLAC, "audio/flac"},
	}
	for _, tt := range tests {
		got, err := MIME(tt.f)
		if err != nil {
			t.Errorf("MIME(%q) returned error: %v", tt.f, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MIME(%q) = %q, want %q", tt.f, got, tt.want)
		}
	}

	if _, err := MIME(Format("ogg")); err == nil {
		t.Error("MIME(ogg) = nil error, want UnsupportedFormatError")
	}
}

func TestSupportsArtwork(t *testing.T) {
	tests := []struct {
		f    Format
		want bool
	}{
		{WAV, false},
		{AIFF, true},
		{MP3, true},
		{FLAC, true},
	}
	for _, tt := range tests {
		if got := SupportsArtwork(tt.f); got != tt.want {
			t.Errorf("SupportsArtwork(%q) = %v, want %v", tt.f, got, tt.want)
		}
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{"Remix (VIP) [2024]", "Remix (VIP) [2024]"},
		{"a/b\\c*d?e", "abcde"},
		{"feat. X & Y", "feat. X  Y"},
		{"<intro>: part 1, part 2", "<intro>: part 1, part 2"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSerializeFileName(t *testing.T) {
	tests := []struct {
		title, artist, label string
		want                 string
	}{
		{"My Song", "Artsy", "", "Artsy - My Song"},
		{"My Song", "Artsy", "Label", "Artsy - My Song [Label]"},
		{"My Song", "Artsy", "  ", "Artsy - My Song"},
		{"My   Song", "Artsy", "", "Artsy - My Song"},
		{"So/ng", "Art*ist", "La&bel", "Artist - Song [Label]"},
	}
	for _, tt := range tests {
		got := SerializeFileName(tt.title, tt.artist, tt.label)
		if got != tt.want {
			t.Errorf("SerializeFileName(%q, %q, %q) = %q, want %q", tt.title, tt.artist, tt.label, got, tt.want)
		}
	}
}

func TestRemoveExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"track.wav", "track"},
		{"my.track.flac", "my.track"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := RemoveExtension(tt.in); got != tt.want {
			t.Errorf("RemoveExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHints(t *testing.T) {
	tests := []struct {
		name     string
		source   Format
		target   Format
		hasCover bool
		want     int
	}{
		{"mp3 source warns about lossy", MP3, WAV, false, 1},
		{"flac to aiff", FLAC, AIFF, false, 1},
		{"flac target playback note", WAV, FLAC, false, 1},
		{"flac target with cover", WAV, FLAC, true, 2},
		{"wav target with cover", AIFF, WAV, true, 1},
		{"clean pairing", WAV, AIFF, false, 0},
	}
	for _, tt := range tests {
		got := Hints(tt.source, tt.target, tt.hasCover)
		if len(got) != tt.want {
			t.Errorf("%s: Hints(%q, %q, %v) returned %d hints, want %d: %v",
				tt.name, tt.source, tt.target, tt.hasCover, len(got), tt.want, got)
		}
	}
}
