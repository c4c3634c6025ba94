package format

import (
	"regexp"
	"strings"
)

var (
	disallowedChars = regexp.MustCompile(`[^\w\-_+()[\]:,.<>\s]`)
	multipleSpaces  = regexp.MustCompile(`\s{2,}`)
	extensionSuffix = regexp.MustCompile(`\.\w+$`)
)

// Clean strips characters outside the release-naming allow-list. It is used
// for building safe filenames only, never for the tags written into the file.
func Clean(s string) string {
	return disallowedChars.ReplaceAllString(s, "")
}

// RemoveExtension drops a trailing ".ext" from a filename, if present.
func RemoveExtension(filename string) string {
	return extensionSuffix.ReplaceAllString(filename, "")
}

// Extension returns the part after the last dot, or the whole name when
// there is no dot.
func Extension(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

// SerializeFileName builds "{artist} - {title}" plus " [{label}]" when the
// label survives cleaning. The result excludes the extension; the caller
// appends ".{targetFormat}". Title and artist are expected pre-trimmed.
func SerializeFileName(title, artist, recordLabel string) string {
	name := artist + " - " + title
	if label := strings.TrimSpace(Clean(recordLabel)); label != "" {
		name += " [" + label + "]"
	}
	return multipleSpaces.ReplaceAllString(Clean(name), " ")
}
