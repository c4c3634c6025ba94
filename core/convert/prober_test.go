package convert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trackstyler/core/engine"
	"trackstyler/model"
)

func TestParseTagLines(t *testing.T) {
	text := "TAG:title=My Song\nTAG:artist=Artsy\n\nTAG:album=Best = Of = All\nTAG:publisher=Label\n"
	tags := parseTagLines(text)

	tests := []struct {
		key, want string
	}{
		{"title", "My Song"},
		{"artist", "Artsy"},
		{"album", "Best = Of = All"}, // value keeps embedded '='
		{"publisher", "Label"},
	}
	for _, tt := range tests {
		if got := tags[tt.key]; got != tt.want {
			t.Errorf("tags[%q] = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseTagLinesCaseInsensitiveKeys(t *testing.T) {
	tags := parseTagLines("TAG:TITLE=Upper\nTAG:Artist=Mixed\n")
	if tags["title"] != "Upper" || tags["artist"] != "Mixed" {
		t.Errorf("keys not matched case-insensitively: %v", tags)
	}
}

func TestParseTagLinesEmpty(t *testing.T) {
	if tags := parseTagLines(""); tags != nil {
		t.Errorf("parseTagLines(\"\") = %v, want nil", tags)
	}
	if tags := parseTagLines("no equals sign here\n"); tags != nil {
		t.Errorf("line without '=' should be skipped, got %v", tags)
	}
}

func TestProbeReturnsNilWhenSessionNotLoaded(t *testing.T) {
	fake := newFakeEngine()
	session := engine.NewSession(fake) // never loaded
	p := NewProber(session, nil)

	meta, err := p.Probe(context.Background(), testTrack())
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if meta != nil {
		t.Errorf("Probe on unloaded session = %+v, want nil", meta)
	}
	if len(fake.probes) != 0 || fake.execCount() != 0 {
		t.Error("Probe on unloaded session must not touch the engine")
	}
}

func TestProbeRecoversTagsAndCover(t *testing.T) {
	fake := newFakeEngine()
	fake.probeOutput = []byte("TAG:title=Found Title\nTAG:artist=Found Artist\n")
	p := NewProber(loadedSession(fake), nil)

	meta, err := p.Probe(context.Background(), testTrack())
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if meta == nil {
		t.Fatal("Probe = nil metadata, want tags and cover")
	}
	if meta.Title != "Found Title" || meta.Artist != "Found Artist" {
		t.Errorf("probed tags = %+v, want Found Title / Found Artist", meta)
	}
	// The fake engine lets the cover-extraction command succeed.
	if meta.AlbumCover == nil {
		t.Fatal("AlbumCover = nil, want extracted cover")
	}
	if meta.AlbumCover.MIME != "image/jpeg" {
		t.Errorf("cover MIME = %q, want image/jpeg", meta.AlbumCover.MIME)
	}

	// ffprobe invocation shape.
	probe := fake.probes[0]
	if !hasPair(probe, "-show_entries", "format_tags=title,artist,album,publisher") {
		t.Errorf("probe args missing tag entries request: %v", probe)
	}
	if !hasPair(probe, "-of", "default=noprint_wrappers=1") {
		t.Errorf("probe args missing structured output format: %v", probe)
	}
}

func TestProbeCoverFailureIsNonFatal(t *testing.T) {
	fake := newFakeEngine()
	fake.probeOutput = []byte("TAG:title=Still Here\n")
	fake.execErr = func(args []string) error {
		// Cover extraction is the only Exec during a probe; a track without
		// a video stream makes it fail.
		return errors.New("Output file does not contain any stream")
	}
	p := NewProber(loadedSession(fake), nil)

	meta, err := p.Probe(context.Background(), testTrack())
	if err != nil {
		t.Fatalf("Probe returned error: %v, want cover failure swallowed", err)
	}
	if meta == nil || meta.Title != "Still Here" {
		t.Fatalf("text tags lost on cover failure: %+v", meta)
	}
	if meta.AlbumCover != nil {
		t.Error("AlbumCover should be nil when extraction fails")
	}
}

func TestProbeNonTextOutput(t *testing.T) {
	fake := newFakeEngine()
	fake.probeOutput = []byte{0xff, 0xfe, 0x00, 0x80, 0xff}
	fake.execErr = func(args []string) error { return errors.New("no video stream") }
	p := NewProber(loadedSession(fake), nil)

	meta, err := p.Probe(context.Background(), testTrack())
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if meta != nil {
		t.Errorf("non-textual probe output should yield nil metadata, got %+v", meta)
	}
}

func TestProbeFailurePropagatesAsProbeError(t *testing.T) {
	fake := newFakeEngine()
	fake.probeErr = errors.New("invalid data found")
	p := NewProber(loadedSession(fake), nil)

	_, err := p.Probe(context.Background(), testTrack())
	if err == nil {
		t.Fatal("Probe = nil error, want ProbeError")
	}
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Errorf("error type = %T, want *ProbeError", err)
	}
}

func TestProbeScratchPathsAreDisjointFromStaging(t *testing.T) {
	fake := newFakeEngine()
	session := loadedSession(fake)
	track := testTrack()

	p := NewProber(session, nil)
	prep := NewPreparer(session)

	if err := prep.Stage(context.Background(), track, "wav"); err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if _, err := p.Probe(context.Background(), track); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}

	staged := StagedPath(track, "wav")
	if got := fake.writeCount(staged); got != 1 {
		t.Errorf("probe touched the staging path (%d writes), paths must be disjoint", got)
	}
}

// memoryCache is a map-backed ProbeCache for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*model.TrackMetadata
	sets    int
}

func (m *memoryCache) Get(ctx context.Context, key string) (*model.TrackMetadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.entries[key]
	return meta, ok
}

func (m *memoryCache) Set(ctx context.Context, key string, meta *model.TrackMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = meta
	m.sets++
}

func TestProbeUsesCache(t *testing.T) {
	fake := newFakeEngine()
	fake.probeOutput = []byte("TAG:title=Cached\n")
	cache := &memoryCache{entries: make(map[string]*model.TrackMetadata)}
	p := NewProber(loadedSession(fake), cache)

	track := testTrack()
	if _, err := p.Probe(context.Background(), track); err != nil {
		t.Fatalf("first Probe returned error: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	firstProbes := len(fake.probes)
	// Same bytes, different upload id: content digest should hit the cache.
	again := &model.UploadedTrack{ID: "track-2", Name: "copy.wav", Data: track.Data}
	meta, err := p.Probe(context.Background(), again)
	if err != nil {
		t.Fatalf("second Probe returned error: %v", err)
	}
	if meta == nil || meta.Title != "Cached" {
		t.Errorf("cached probe result = %+v, want Cached title", meta)
	}
	if len(fake.probes) != firstProbes {
		t.Error("cache hit still ran an engine probe")
	}
}
