// Package telemetry posts fire-and-forget usage events. Events carry only
// presence flags and format names, never tag content, and a failed post can
// never affect the conversion pipeline.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"trackstyler/logger"
)

const postTimeout = 3 * time.Second

// Props is the flat property bag attached to an event.
type Props map[string]interface{}

// Client posts events to a Plausible-compatible endpoint. A nil client or an
// empty endpoint disables reporting.
type Client struct {
	endpoint string
	domain   string
	http     *http.Client
}

// New creates a client. Returns nil when endpoint is empty; all methods are
// safe on a nil receiver.
func New(endpoint, domain string) *Client {
	if endpoint == "" {
		return nil
	}
	return &Client{
		endpoint: endpoint,
		domain:   domain,
		http:     &http.Client{Timeout: postTimeout},
	}
}

type eventPayload struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
	Props  Props  `json:"props,omitempty"`
}

// Event posts a named event in the background and returns immediately.
func (c *Client) Event(name string, props Props) {
	if c == nil {
		return
	}
	go c.post(name, props)
}

func (c *Client) post(name string, props Props) {
	payload, err := json.Marshal(eventPayload{
		Name:   name,
		Domain: c.domain,
		URL:    "app://" + c.domain,
		Props:  props,
	})
	if err != nil {
		logger.Debug("telemetry marshal failed", logger.ErrorField(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		logger.Debug("telemetry request failed", logger.ErrorField(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("telemetry post failed", logger.String("event", name), logger.ErrorField(err))
		return
	}
	resp.Body.Close()
}

// TrackLoaded reports a successful upload.
func (c *Client) TrackLoaded(sourceFormat string) {
	c.Event("track_loaded", Props{"sourceFormat": sourceFormat})
}

// TrackProbed reports which metadata fields a probe recovered, as booleans
// only.
func (c *Client) TrackProbed(title, artist, album, albumCover, recordLabel bool) {
	c.Event("track_probed", Props{
		"title":       title,
		"artist":      artist,
		"album":       album,
		"albumCover":  albumCover,
		"recordLabel": recordLabel,
	})
}

// SaveStarted reports the start of a conversion.
func (c *Client) SaveStarted(sourceFormat, targetFormat string, filledTitle, filledArtist, filledAlbum, filledAlbumCover, filledRecordLabel bool) {
	c.Event("track_save_started", Props{
		"sourceFormat":      sourceFormat,
		"targetFormat":      targetFormat,
		"filledTitle":       filledTitle,
		"filledArtist":      filledArtist,
		"filledAlbum":       filledAlbum,
		"filledAlbumCover":  filledAlbumCover,
		"filledRecordLabel": filledRecordLabel,
	})
}

// SaveFinished reports a completed conversion and its elapsed time.
func (c *Client) SaveFinished(sourceFormat, targetFormat string, elapsed time.Duration) {
	c.Event("track_save_finished", Props{
		"sourceFormat": sourceFormat,
		"targetFormat": targetFormat,
		"saveTime_ms":  elapsed.Milliseconds(),
	})
}
