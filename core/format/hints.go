package format

// Hints returns informational notes about a source/target format pairing.
// They are surfaced next to the format selector and never block a
// conversion.
func Hints(source, target Format, hasAlbumCover bool) []string {
	var hints []string

	if source == MP3 {
		hints = append(hints, ".mp3 is a lossy compressed format and cannot be converted to uncompressed formats like .wav or .aiff.")
	}

	if source == FLAC && (target == AIFF || target == WAV) {
		hints = append(hints, "When converting .flac to ."+string(target)+", a small performance loss might occur.")
	}

	if target == FLAC {
		hints = append(hints, "Playback support .flac is limited on some devices.")
	}

	if target == FLAC && hasAlbumCover {
		hints = append(hints, "Album cover might not be shown everywhere.")
	}

	if target == WAV && hasAlbumCover {
		hints = append(hints, ".wav does not support embedded album covers. Choose .aiff to include the album cover.")
	}

	return hints
}
