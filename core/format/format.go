package format

import "fmt"

// Format identifies a supported audio container format.
type Format string

const (
	AIFF Format = "aiff"
	WAV  Format = "wav"
	FLAC Format = "flac"
	MP3  Format = "mp3"
)

// info holds the static capabilities of a format.
type info struct {
	MIME            string
	SupportsArtwork bool
}

var registry = map[Format]info{
	AIFF: {MIME: "audio/aiff", SupportsArtwork: true},
	WAV:  {MIME: "audio/wav", SupportsArtwork: false},
	FLAC: {MIME: "audio/flac", SupportsArtwork: true},
	MP3:  {MIME: "audio/mp3", SupportsArtwork: true},
}

// extensions maps recognized file extensions to their format. Both spellings
// of AIFF map to the same format id.
var extensions = map[string]Format{
	"wav":  WAV,
	"mp3":  MP3,
	"aif":  AIFF,
	"aiff": AIFF,
	"flac": FLAC,
}

// All returns the supported formats in selector order.
func All() []Format {
	return []Format{AIFF, WAV, FLAC, MP3}
}

// UnsupportedFormatError reports a file extension or format id that does not
// map to a supported format.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q", e.Extension)
}

// MIME returns the output blob MIME type for a format.
func MIME(f Format) (string, error) {
	entry, ok := registry[f]
	if !ok {
		return "", &UnsupportedFormatError{Extension: string(f)}
	}
	return entry.MIME, nil
}

// SupportsArtwork reports whether the format can carry an embedded album
// cover.
func SupportsArtwork(f Format) bool {
	return registry[f].SupportsArtwork
}

// Valid reports whether f is a supported format id.
func Valid(f Format) bool {
	_, ok := registry[f]
	return ok
}

// Detect maps a filename's extension to a supported format.
func Detect(filename string) (Format, error) {
	ext := Extension(filename)
	f, ok := extensions[ext]
	if !ok {
		return "", &UnsupportedFormatError{Extension: ext}
	}
	return f, nil
}
