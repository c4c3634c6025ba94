package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"trackstyler/config"
	"trackstyler/core/convert"
	"trackstyler/core/engine"
	"trackstyler/core/format"
	"trackstyler/logger"
	"trackstyler/model"
)

var (
	convertTitle  string
	convertArtist string
	convertAlbum  string
	convertLabel  string
	convertTarget string
	convertCover  string
	convertOutDir string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert one audio file and write its tags.",
	Long: `Convert a single audio file without starting the server. Tags given by
flags replace the ones recovered from the file; the output lands next to the
input (or in --out-dir) under a "Artist - Title [Label]" style name.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.Init(logger.Config{Level: cfg.LogLevel})

		inputPath := args[0]
		data, err := os.ReadFile(inputPath)
		if err != nil {
			log.Fatalf("cannot read %s: %v", inputPath, err)
		}

		sourceFormat, err := format.Detect(filepath.Base(inputPath))
		if err != nil {
			log.Fatalf("%v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		session := engine.NewSession(engine.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, cfg.EngineWorkDir))
		if err := session.EnsureLoaded(ctx); err != nil {
			log.Fatalf("engine failed to load: %v", err)
		}

		preparer := convert.NewPreparer(session)
		prober := convert.NewProber(session, nil)
		orchestrator := convert.NewOrchestrator(session)

		track := model.NewUploadedTrack(filepath.Base(inputPath), data)
		track.Metadata, err = prober.Probe(ctx, track)
		if err != nil {
			logger.Warn("probe failed, converting without recovered tags", logger.ErrorField(err))
		}

		form := model.DefaultFormState(track, sourceFormat)
		if convertTitle != "" {
			form.Title = convertTitle
		}
		if convertArtist != "" {
			form.Artist = convertArtist
		}
		if convertAlbum != "" {
			form.Album = convertAlbum
		}
		if convertLabel != "" {
			form.RecordLabel = convertLabel
		}
		if convertTarget != "" {
			target := format.Format(convertTarget)
			if !format.Valid(target) {
				log.Fatalf("unknown target format %q (formats: %v)", convertTarget, format.All())
			}
			form.SelectedFormat = target
		}
		if convertCover != "" {
			coverData, err := os.ReadFile(convertCover)
			if err != nil {
				log.Fatalf("cannot read cover %s: %v", convertCover, err)
			}
			form.AlbumCover = &model.CoverImage{
				Name: filepath.Base(convertCover),
				MIME: http.DetectContentType(coverData),
				Data: coverData,
			}
		}

		state := model.Derive(form, track, sourceFormat)

		converter := convert.NewConverter(session, preparer, orchestrator, track, sourceFormat)
		if err := converter.Stage(ctx); err != nil {
			log.Fatalf("failed to load track into the engine: %v", err)
		}

		blob, err := converter.ConvertTrack(ctx, state.TargetFormat, model.ConvertMetadata(state))
		if err != nil {
			log.Fatalf("conversion failed: %v", err)
		}

		outDir := convertOutDir
		if outDir == "" {
			outDir = filepath.Dir(inputPath)
		}
		outPath := filepath.Join(outDir, fmt.Sprintf("%s.%s", state.NewFileName, state.TargetFormat))
		if err := os.WriteFile(outPath, blob.Data, 0644); err != nil {
			log.Fatalf("cannot write %s: %v", outPath, err)
		}

		fmt.Printf("%s -> %s (%d bytes)\n", inputPath, outPath, len(blob.Data))
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertTitle, "title", "", "track title tag")
	convertCmd.Flags().StringVar(&convertArtist, "artist", "", "artist tag")
	convertCmd.Flags().StringVar(&convertAlbum, "album", "", "album tag")
	convertCmd.Flags().StringVar(&convertLabel, "label", "", "record label (publisher tag)")
	convertCmd.Flags().StringVarP(&convertTarget, "format", "f", "", "target format (defaults to the source format)")
	convertCmd.Flags().StringVar(&convertCover, "cover", "", "path to a new album cover image")
	convertCmd.Flags().StringVarP(&convertOutDir, "out-dir", "o", "", "output directory (defaults to the input's directory)")
}
