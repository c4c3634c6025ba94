package convert

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"trackstyler/core/engine"
	"trackstyler/logger"
	"trackstyler/model"
)

// probeEntries names the format-level tags requested from the engine's
// introspection mode.
const probeEntries = "format_tags=title,artist,album,publisher"

// ProbeCache caches probe results keyed by a content digest, so re-uploading
// the same file skips the engine round trips. Implementations must be safe
// for concurrent use.
type ProbeCache interface {
	Get(ctx context.Context, key string) (*model.TrackMetadata, bool)
	Set(ctx context.Context, key string, meta *model.TrackMetadata)
}

// Prober recovers pre-existing tags and artwork from an uploaded file
// without mutating it. Probe scratch paths are disjoint from staging paths,
// so probing and staging may run concurrently for the same track.
type Prober struct {
	session *engine.Session
	cache   ProbeCache // optional
}

// NewProber creates a Prober. cache may be nil.
func NewProber(session *engine.Session, cache ProbeCache) *Prober {
	return &Prober{session: session, cache: cache}
}

// Probe inspects a track for text tags and an embedded cover. It returns
// (nil, nil) when the engine session is not loaded yet; callers may retry
// once it is. A missing or unextractable cover is normal and never fails the
// probe; text tags are still returned.
func (p *Prober) Probe(ctx context.Context, track *model.UploadedTrack) (*model.TrackMetadata, error) {
	if !p.session.Loaded() {
		return nil, nil
	}

	key := contentDigest(track.Data)
	if p.cache != nil {
		if meta, ok := p.cache.Get(ctx, key); ok {
			logger.Debug("probe cache hit", logger.String("trackId", track.ID))
			return meta, nil
		}
	}

	tags, err := p.probeTags(ctx, track)
	if err != nil {
		return nil, &ProbeError{TrackID: track.ID, Err: err}
	}

	cover := p.probeAlbumCover(ctx, track)

	if tags == nil && cover == nil {
		return nil, nil
	}

	meta := &model.TrackMetadata{AlbumCover: cover}
	if tags != nil {
		meta.Title = tags["title"]
		meta.Artist = tags["artist"]
		meta.Album = tags["album"]
		meta.Publisher = tags["publisher"]
	}

	if p.cache != nil {
		p.cache.Set(ctx, key, meta)
	}
	return meta, nil
}

// probeTags runs the engine's introspection over a scratch copy of the track
// and parses the structured "TAG:key=value" output. A non-textual output is
// logged and yields nil tags, not an error.
func (p *Prober) probeTags(ctx context.Context, track *model.UploadedTrack) (map[string]string, error) {
	eng := p.session.Engine()

	probeName := fmt.Sprintf("%s_probe_%s", track.ID, track.Name)
	probedName := fmt.Sprintf("%s__probed.txt", track.ID)
	defer func() {
		_ = eng.RemoveFile(ctx, probeName)
		_ = eng.RemoveFile(ctx, probedName)
	}()

	if err := eng.WriteFile(ctx, probeName, track.Data); err != nil {
		return nil, err
	}

	args := []string{
		probeName,
		"-loglevel", "error",
		"-show_entries", probeEntries,
		"-of", "default=noprint_wrappers=1",
		"-o", probedName,
	}
	if err := eng.Probe(ctx, args); err != nil {
		return nil, err
	}

	raw, err := eng.ReadFile(ctx, probedName)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		logger.Warn("probe output is not textual", logger.String("trackId", track.ID))
		return nil, nil
	}

	return parseTagLines(string(raw)), nil
}

// parseTagLines parses non-empty "TAG:key=value" lines. The value keeps any
// further "=" characters. Keys are matched case-insensitively since tag
// casing varies by container.
func parseTagLines(text string) map[string]string {
	tags := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "TAG:")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		tags[strings.ToLower(key)] = value
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// probeAlbumCover extracts an embedded cover by dropping the audio stream
// and copying the video stream to a scratch jpeg. Files without artwork make
// this command fail; that is the normal case and never fatal.
func (p *Prober) probeAlbumCover(ctx context.Context, track *model.UploadedTrack) *model.CoverImage {
	eng := p.session.Engine()

	trackName := fmt.Sprintf("%s__getAlbum__%s", track.ID, track.Name)
	coverName := fmt.Sprintf("%s-_getAlbum_out.jpg", track.ID)
	defer func() {
		_ = eng.RemoveFile(ctx, trackName)
		_ = eng.RemoveFile(ctx, coverName)
	}()

	if err := eng.WriteFile(ctx, trackName, track.Data); err != nil {
		logger.Debug("cover probe write failed", logger.String("trackId", track.ID), logger.ErrorField(err))
		return nil
	}

	args := []string{
		"-i", trackName,
		"-an",
		"-c:v", "copy",
		coverName,
	}
	if err := eng.Exec(ctx, args); err != nil {
		logger.Debug("no embedded album cover", logger.String("trackId", track.ID), logger.ErrorField(err))
		return nil
	}

	data, err := eng.ReadFile(ctx, coverName)
	if err != nil {
		logger.Debug("cover read-back failed", logger.String("trackId", track.ID), logger.ErrorField(err))
		return nil
	}

	return &model.CoverImage{
		Name: coverName,
		MIME: "image/jpeg",
		Data: data,
	}
}

// contentDigest keys probe-cache entries by the uploaded bytes.
func contentDigest(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
