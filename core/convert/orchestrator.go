package convert

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"trackstyler/core/engine"
	"trackstyler/core/format"
	"trackstyler/logger"
	"trackstyler/model"
)

const (
	// mp3Bitrate is the fixed bitrate for lossy output.
	mp3Bitrate = "320k"

	// coverFilter center-crops the cover to a square and downscales so
	// neither dimension exceeds 3000px. Smaller images are never upscaled.
	coverFilter = `crop='min(in_w\,in_h)':'min(in_w\,in_h)',scale='if(gt(in_w\,3000),3000,in_w)':'if(gt(in_h\,3000),3000,in_h)'`

	// coverQuality is the fixed JPEG quality for the normalized cover.
	coverQuality = "2"
)

// Orchestrator turns a staged track plus desired metadata into an encoded
// blob in the target format, sequencing the necessary engine commands.
type Orchestrator struct {
	session *engine.Session
}

// NewOrchestrator creates an Orchestrator bound to the shared engine session.
func NewOrchestrator(session *engine.Session) *Orchestrator {
	return &Orchestrator{session: session}
}

// argPlan accumulates an engine argv. Conditional flags are added under
// named conditions rather than filtered afterwards, so the format-dependent
// parts of a command stay visible at the call site.
type argPlan struct {
	args []string
}

func (p *argPlan) add(args ...string) {
	p.args = append(p.args, args...)
}

func (p *argPlan) addIf(cond bool, args ...string) {
	if cond {
		p.add(args...)
	}
}

// addTag emits "-metadata key=value" only for non-empty values; unset fields
// are omitted from the command entirely.
func (p *argPlan) addTag(key, value string) {
	if value != "" {
		p.add("-metadata", key+"="+value)
	}
}

// Convert encodes the staged input into the target format with the given
// tags. Preconditions: the session is loaded and the source bytes sit at
// stagedPath. A new album cover in meta selects the two-input plan; without
// one the single-input plan avoids an unnecessary lossy cover pass.
func (o *Orchestrator) Convert(ctx context.Context, stagedPath string, source, target format.Format, meta model.TrackMetadata) (*model.Blob, error) {
	mime, err := format.MIME(target)
	if err != nil {
		return nil, err
	}

	eng := o.session.Engine()
	outName := fmt.Sprintf("%s__out.%s", stagedPath, target)
	defer func() { _ = eng.RemoveFile(ctx, outName) }()

	logger.Info("converting track",
		logger.String("input", stagedPath),
		logger.String("source", string(source)),
		logger.String("target", string(target)),
		logger.Bool("newAlbumCover", meta.AlbumCover != nil))

	if meta.AlbumCover != nil {
		err = o.convertWithAlbumCover(ctx, stagedPath, outName, source, target, meta)
	} else {
		err = o.convertPlain(ctx, stagedPath, outName, source, target, meta)
	}
	if err != nil {
		return nil, err
	}

	data, err := eng.ReadFile(ctx, outName)
	if err != nil {
		return nil, &ConversionError{Err: fmt.Errorf("failed to read conversion output: %w", err)}
	}

	return &model.Blob{Data: data, MIME: mime}, nil
}

// convertPlain is the single-input plan: map the first stream, write tags,
// and stream-copy when no actual transcode is needed.
func (o *Orchestrator) convertPlain(ctx context.Context, stagedPath, outName string, source, target format.Format, meta model.TrackMetadata) error {
	plan := &argPlan{}
	plan.add("-i", stagedPath)
	plan.add("-map", "0:0")
	plan.add("-id3v2_version", "3")
	plan.addTag("artist", meta.Artist)
	plan.addTag("title", meta.Title)
	plan.addTag("album", meta.Album)
	plan.addTag("publisher", meta.Publisher)
	plan.addIf(target == format.MP3, "-b:a", mp3Bitrate)
	plan.add("-write_id3v2", "1")
	// Keep the original bitstream when no transcode is needed.
	plan.addIf(source == target, "-codec:a", "copy")
	plan.add(outName)

	if err := o.session.Engine().Exec(ctx, plan.args); err != nil {
		return &ConversionError{Args: plan.args, Err: err}
	}
	return nil
}

// convertWithAlbumCover is the two-input plan: normalize the new cover to a
// square jpeg, then mux it in as an attached front-cover video stream while
// applying the same tag rules as the plain plan.
func (o *Orchestrator) convertWithAlbumCover(ctx context.Context, stagedPath, outName string, source, target format.Format, meta model.TrackMetadata) error {
	eng := o.session.Engine()

	// Scratch names carry a fresh token so concurrent conversions never
	// collide.
	conversionID := uuid.NewString()
	rawCoverName := fmt.Sprintf("%s_%s", conversionID, meta.AlbumCover.Name)
	coverName := fmt.Sprintf("%s_%s__albumCover.jpg", conversionID, meta.AlbumCover.Name)
	defer func() {
		_ = eng.RemoveFile(ctx, rawCoverName)
		_ = eng.RemoveFile(ctx, coverName)
	}()

	if err := eng.WriteFile(ctx, rawCoverName, meta.AlbumCover.Data); err != nil {
		return &ConversionError{Err: fmt.Errorf("failed to write album cover: %w", err)}
	}

	normalize := &argPlan{}
	normalize.add("-i", rawCoverName)
	normalize.add("-vf", coverFilter)
	normalize.add("-q:v", coverQuality)
	normalize.add(coverName)
	if err := eng.Exec(ctx, normalize.args); err != nil {
		return &ConversionError{Args: normalize.args, Err: err}
	}

	plan := &argPlan{}
	plan.add("-i", stagedPath)
	plan.add("-i", coverName)
	plan.add("-map", "0:a")
	plan.add("-map", "1:v")
	plan.add("-id3v2_version", "3")
	// Carry the container-level tags of the audio input across.
	plan.add("-map_metadata", "0")
	plan.add("-metadata:s:v", "title=Album cover")
	plan.add("-metadata:s:v", "comment=Cover (front)")
	plan.addTag("artist", meta.Artist)
	plan.addTag("title", meta.Title)
	plan.addTag("album", meta.Album)
	plan.addTag("publisher", meta.Publisher)
	plan.addIf(target == format.MP3, "-b:a", mp3Bitrate)
	plan.add("-write_id3v2", "1")
	plan.addIf(source == target, "-codec:a", "copy")
	plan.add("-codec:v", "copy")
	// Mark the image stream as cover art so players do not treat it as a
	// second visible stream.
	plan.addIf(target == format.FLAC, "-disposition:v", "attached_pic")
	plan.add(outName)

	if err := eng.Exec(ctx, plan.args); err != nil {
		return &ConversionError{Args: plan.args, Err: err}
	}
	return nil
}
