package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"trackstyler/config"
	"trackstyler/core/convert"
	"trackstyler/core/engine"
	"trackstyler/core/format"
	"trackstyler/core/telemetry"
	"trackstyler/logger"
	"trackstyler/model"
)

// maxUploadBytes caps one multipart upload request.
const maxUploadBytes = 1 << 30 // 1GB

// APIHandler 处理所有API请求
type APIHandler struct {
	store        *TrackStore
	session      *engine.Session
	preparer     *convert.Preparer
	prober       *convert.Prober
	orchestrator *convert.Orchestrator
	telemetry    *telemetry.Client
	cfg          *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	store *TrackStore,
	session *engine.Session,
	preparer *convert.Preparer,
	prober *convert.Prober,
	orchestrator *convert.Orchestrator,
	tele *telemetry.Client,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		store:        store,
		session:      session,
		preparer:     preparer,
		prober:       prober,
		orchestrator: orchestrator,
		telemetry:    tele,
		cfg:          cfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// trackView is the API shape of one track: derived state plus conversion
// status. Raw bytes never leave the store.
type trackView struct {
	ID       string           `json:"id"`
	FileName string           `json:"fileName"`
	State    model.TrackState `json:"state"`
	Status   string           `json:"status"`
	IsReady  bool             `json:"isReady"`
	IsBusy   bool             `json:"isBusy"`
	Hints    []string         `json:"hints,omitempty"`
}

func viewOf(snap TrackSnapshot) trackView {
	state := model.Derive(snap.Form, snap.Upload, snap.SourceFormat)
	return trackView{
		ID:       snap.Upload.ID,
		FileName: snap.Upload.Name,
		State:    state,
		Status:   snap.Converter.Status().String(),
		IsReady:  snap.Converter.IsReady(),
		IsBusy:   snap.Converter.IsBusy(),
		Hints:    format.Hints(state.SourceFormat, state.TargetFormat, state.HasAlbumCover),
	}
}

// rejectedUpload names a file the upload boundary excluded and why.
type rejectedUpload struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// UploadTracksHandler accepts one or more audio files. Files with
// unrecognized extensions are excluded from the accepted set and reported;
// the remaining files are unaffected.
func (h *APIHandler) UploadTracksHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var accepted []trackView
	var rejected []rejectedUpload

	for _, header := range files {
		sourceFormat, err := format.Detect(header.Filename)
		if err != nil {
			logger.Warn("rejected upload",
				logger.String("fileName", header.Filename),
				logger.ErrorField(err))
			rejected = append(rejected, rejectedUpload{FileName: header.Filename, Reason: err.Error()})
			continue
		}

		// A file that fails to read is excluded like an unsupported one:
		// by this point earlier files are already accepted and staging,
		// so aborting the whole request would leave their fate unclear.
		file, err := header.Open()
		if err != nil {
			logger.Warn("rejected upload",
				logger.String("fileName", header.Filename),
				logger.ErrorField(err))
			rejected = append(rejected, rejectedUpload{FileName: header.Filename, Reason: "failed to read uploaded file"})
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			logger.Warn("rejected upload",
				logger.String("fileName", header.Filename),
				logger.ErrorField(err))
			rejected = append(rejected, rejectedUpload{FileName: header.Filename, Reason: "failed to read uploaded file"})
			continue
		}

		upload := model.NewUploadedTrack(header.Filename, data)
		entry := &TrackEntry{
			Upload:       upload,
			SourceFormat: sourceFormat,
			Converter:    convert.NewConverter(h.session, h.preparer, h.orchestrator, upload, sourceFormat),
		}
		h.store.Add(entry)

		logger.Info("track uploaded",
			logger.String("trackId", upload.ID),
			logger.String("fileName", upload.Name),
			logger.String("sourceFormat", string(sourceFormat)),
			logger.Int("bytes", len(data)))
		h.telemetry.TrackLoaded(string(sourceFormat))

		// Staging and probing run in the background; the upload response
		// does not wait for the engine.
		go h.prepareTrack(entry)

		if snap, ok := h.store.Snapshot(upload.ID); ok {
			accepted = append(accepted, viewOf(snap))
		}
	}

	status := http.StatusOK
	if len(accepted) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]interface{}{
		"tracks":   accepted,
		"rejected": rejected,
	})
}

// prepareTrack stages the upload and probes its existing metadata. Every
// state update after an awaited engine call is guarded against the track
// having been removed meanwhile.
func (h *APIHandler) prepareTrack(entry *TrackEntry) {
	ctx := context.Background()
	id := entry.Upload.ID

	if err := entry.Converter.Stage(ctx); err != nil {
		logger.Error("background staging failed",
			logger.String("trackId", id),
			logger.ErrorField(err))
		return
	}

	meta, err := h.prober.Probe(ctx, entry.Upload)
	if err != nil {
		// Blank fields are fine; the user fills them in.
		logger.Warn("metadata probe failed",
			logger.String("trackId", id),
			logger.ErrorField(err))
		return
	}
	if meta == nil {
		return
	}

	if !h.store.Update(id, func(e *TrackEntry) { e.Upload.Metadata = meta }) {
		logger.Debug("track removed before probe finished", logger.String("trackId", id))
		return
	}

	h.telemetry.TrackProbed(
		meta.Title != "",
		meta.Artist != "",
		meta.Album != "",
		meta.AlbumCover != nil,
		meta.Publisher != "",
	)
}

// GetTracksHandler lists all tracks with their derived state.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	snaps := h.store.Snapshots()
	views := make([]trackView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, viewOf(snap))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": views})
}

// trackFormUpdate carries a partial form edit; nil fields stay untouched.
type trackFormUpdate struct {
	Title          *string `json:"title"`
	Artist         *string `json:"artist"`
	RecordLabel    *string `json:"recordLabel"`
	Album          *string `json:"album"`
	SelectedFormat *string `json:"selectedFormat"`
}

// UpdateTrackHandler edits a track's form state. The form is created lazily
// on first edit, defaulting from probed metadata.
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var update trackFormUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.SelectedFormat != nil && !format.Valid(format.Format(*update.SelectedFormat)) {
		writeError(w, http.StatusBadRequest, "unsupported target format")
		return
	}

	ok := h.store.Update(id, func(entry *TrackEntry) {
		if entry.Form == nil {
			entry.Form = model.DefaultFormState(entry.Upload, entry.SourceFormat)
		}
		if update.Title != nil {
			entry.Form.Title = *update.Title
		}
		if update.Artist != nil {
			entry.Form.Artist = *update.Artist
		}
		if update.RecordLabel != nil {
			entry.Form.RecordLabel = *update.RecordLabel
		}
		if update.Album != nil {
			entry.Form.Album = *update.Album
		}
		if update.SelectedFormat != nil {
			entry.Form.SelectedFormat = format.Format(*update.SelectedFormat)
		}
	})
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	snap, ok := h.store.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

// UploadCoverHandler sets a new album cover for a track, overriding any
// probed artwork for subsequent conversions.
func (h *APIHandler) UploadCoverHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, 64<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing cover file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read cover file")
		return
	}

	cover := &model.CoverImage{
		Name: header.Filename,
		MIME: header.Header.Get("Content-Type"),
		Data: data,
	}

	ok := h.store.Update(id, func(entry *TrackEntry) {
		if entry.Form == nil {
			entry.Form = model.DefaultFormState(entry.Upload, entry.SourceFormat)
		}
		entry.Form.AlbumCover = cover
	})
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	snap, ok := h.store.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

// GetCoverHandler serves the active cover image: the newly supplied one, or
// the probed artwork.
func (h *APIHandler) GetCoverHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, ok := h.store.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	cover := model.ActiveCover(snap.Form, snap.Upload)
	if cover == nil {
		writeError(w, http.StatusNotFound, "track has no album cover")
		return
	}

	mime := cover.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(cover.Data); err != nil {
		logger.Debug("failed to serve cover", logger.ErrorField(err))
	}
}

// DeleteTrackHandler removes a track. An in-flight conversion runs to
// completion; its result is discarded.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, ok := h.store.Remove(id)
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	entry.Converter.Reset()

	logger.Info("track removed", logger.String("trackId", id))
	w.WriteHeader(http.StatusNoContent)
}

// FormatsHandler lists supported formats and their capabilities.
func (h *APIHandler) FormatsHandler(w http.ResponseWriter, r *http.Request) {
	type formatView struct {
		ID              string `json:"id"`
		MIME            string `json:"mime"`
		SupportsArtwork bool   `json:"supportsArtwork"`
	}
	views := make([]formatView, 0, len(format.All()))
	for _, f := range format.All() {
		mime, _ := format.MIME(f)
		views = append(views, formatView{
			ID:              string(f),
			MIME:            mime,
			SupportsArtwork: format.SupportsArtwork(f),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"formats": views})
}

// HintsHandler returns the informational format hints for a track's current
// source/target pairing.
func (h *APIHandler) HintsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, ok := h.store.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	state := model.Derive(snap.Form, snap.Upload, snap.SourceFormat)
	hints := format.Hints(state.SourceFormat, state.TargetFormat, state.HasAlbumCover)
	writeJSON(w, http.StatusOK, map[string]interface{}{"hints": hints})
}
