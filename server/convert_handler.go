package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"trackstyler/core/convert"
	"trackstyler/core/engine"
	"trackstyler/logger"
	"trackstyler/model"
	"trackstyler/storage"
)

// ConvertTrackHandler runs the guarded conversion for one track and streams
// the encoded result as a download.
func (h *APIHandler) ConvertTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, ok := h.store.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	converter := snap.Converter

	if err := h.session.EnsureLoaded(r.Context()); err != nil {
		var initErr *engine.InitializationError
		if errors.As(err, &initErr) {
			writeError(w, http.StatusServiceUnavailable, "processing engine failed to load")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "processing engine not available")
		return
	}

	// Staging normally finished in the background after upload; retry here
	// if it failed, so a transient error does not strand the track.
	if !converter.IsReady() {
		if converter.IsBusy() {
			writeError(w, http.StatusConflict, "track is busy")
			return
		}
		if err := converter.Stage(r.Context()); err != nil {
			logger.Error("staging on demand failed", logger.String("trackId", id), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "failed to load track into the engine")
			return
		}
	}

	// Derive from the snapshot: form edits racing this request see either
	// the old or the new state, never a torn read.
	state := model.Derive(snap.Form, snap.Upload, snap.SourceFormat)
	meta := model.ConvertMetadata(state)

	h.telemetry.SaveStarted(
		string(state.SourceFormat), string(state.TargetFormat),
		meta.Title != "", meta.Artist != "", meta.Album != "",
		meta.AlbumCover != nil, meta.Publisher != "",
	)

	start := time.Now()
	blob, err := converter.ConvertTrack(r.Context(), state.TargetFormat, meta)
	if err != nil {
		var convErr *convert.ConversionError
		if errors.As(err, &convErr) {
			logger.Error("conversion failed",
				logger.String("trackId", id),
				logger.Strings("command", convErr.Args),
				logger.ErrorField(convErr.Err))
		} else {
			logger.Error("conversion failed", logger.String("trackId", id), logger.ErrorField(err))
		}
		writeError(w, http.StatusInternalServerError, "conversion failed, no output produced")
		return
	}
	if blob == nil {
		// Another conversion won the race; no duplicate work was started.
		writeError(w, http.StatusConflict, "track is not ready")
		return
	}
	elapsed := time.Since(start)

	// The track may have been removed while the engine ran; its result must
	// not be surfaced.
	if !h.store.Has(id) {
		logger.Info("discarding conversion result of removed track", logger.String("trackId", id))
		writeError(w, http.StatusGone, "track was removed")
		return
	}

	fileName := fmt.Sprintf("%s.%s", state.NewFileName, state.TargetFormat)

	logger.Info("conversion finished",
		logger.String("trackId", id),
		logger.String("fileName", fileName),
		logger.Duration("elapsed", elapsed),
		logger.Int("bytes", len(blob.Data)))
	h.telemetry.SaveFinished(string(state.SourceFormat), string(state.TargetFormat), elapsed)

	if storage.Enabled() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := storage.ArchiveConversion(ctx, id, fileName, blob); err != nil {
				logger.Warn("failed to archive conversion", logger.String("trackId", id), logger.ErrorField(err))
			}
		}()
	}

	w.Header().Set("Content-Type", blob.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if _, err := w.Write(blob.Data); err != nil {
		logger.Debug("failed to stream conversion result", logger.ErrorField(err))
	}
}
