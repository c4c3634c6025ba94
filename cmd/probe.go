package cmd

import (
	"context"
	"fmt"
	"log"
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

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Print the tags and cover recovered from an audio file.",
	Args:  cobra.ExactArgs(1),
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

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		session := engine.NewSession(engine.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, cfg.EngineWorkDir))
		if err := session.EnsureLoaded(ctx); err != nil {
			log.Fatalf("engine failed to load: %v", err)
		}

		prober := convert.NewProber(session, nil)
		track := model.NewUploadedTrack(filepath.Base(inputPath), data)
		meta, err := prober.Probe(ctx, track)
		if err != nil {
			log.Fatalf("probe failed: %v", err)
		}

		fmt.Printf("format:  %s\n", sourceFormat)
		if meta == nil {
			fmt.Println("no tags recovered")
			return
		}
		fmt.Printf("title:   %s\n", meta.Title)
		fmt.Printf("artist:  %s\n", meta.Artist)
		fmt.Printf("album:   %s\n", meta.Album)
		fmt.Printf("label:   %s\n", meta.Publisher)
		if meta.AlbumCover != nil {
			fmt.Printf("cover:   %s (%d bytes)\n", meta.AlbumCover.MIME, len(meta.AlbumCover.Data))
		} else {
			fmt.Println("cover:   none")
		}
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
