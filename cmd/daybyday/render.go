package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ivlev/daybyday/internal/artifact"
	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/progress"
	"github.com/ivlev/daybyday/internal/storage"
	"github.com/ivlev/daybyday/internal/timeline"
	"github.com/ivlev/daybyday/internal/video"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a timeline to a video file",
	Long: `Render reads a YAML timeline (or scans a folder of dated photos) and
writes the finished video.

Example:
  daybyday render --dir ./photos --duration 1.5 --transition crossfade --out journal.mp4`,
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.String("timeline", "", "YAML timeline file")
	f.String("dir", "", "Folder of photos named YYYY-MM-DD*.ext (instead of --timeline)")
	f.StringP("out", "o", "", "Output file; when empty the artifact goes to the configured storage")
	f.String("mode", "", "Render mode: batch or realtime (overrides config)")
	f.String("aspect", string(config.Aspect16x9), "Aspect ratio: 16:9, 1:1, 9:16")
	f.Float64P("duration", "d", 2.0, "Seconds per photo")
	f.String("transition", string(config.TransitionNone), "Transition: none or crossfade")
	f.Float64("transition-seconds", 0.5, "Crossfade length in seconds")
	f.Bool("date-overlay", true, "Draw the day in the corner")
	f.Bool("face-aware", false, "Keep faces in frame when cropping")
	f.String("background", "#000000", "Background color")
	f.Int("workers", 0, "Parallel decoders (0 = auto)")
}

func renderSettings(cmd *cobra.Command) (config.RenderSettings, error) {
	f := cmd.Flags()
	s := config.DefaultRenderSettings()

	aspect, _ := f.GetString("aspect")
	transition, _ := f.GetString("transition")
	background, _ := f.GetString("background")
	s.AspectRatio = config.AspectRatio(aspect)
	s.Transition = config.Transition(transition)
	s.DurationPerSlide, _ = f.GetFloat64("duration")
	s.TransitionSeconds, _ = f.GetFloat64("transition-seconds")
	s.ShowDateOverlay, _ = f.GetBool("date-overlay")
	s.FaceAwareCrop, _ = f.GetBool("face-aware")

	bg, err := config.ParseRGB(background)
	if err != nil {
		return s, errors.ValidationField("background", err.Error())
	}
	s.BackgroundColor = bg
	return s, s.Validate()
}

func renderEntries(cmd *cobra.Command) ([]timeline.Entry, error) {
	tlPath, _ := cmd.Flags().GetString("timeline")
	dir, _ := cmd.Flags().GetString("dir")

	switch {
	case tlPath != "" && dir != "":
		return nil, errors.Validation("use either --timeline or --dir, not both")
	case tlPath != "":
		tl, err := timeline.ReadFile(tlPath)
		if err != nil {
			return nil, err
		}
		return tl.Entries(), nil
	case dir != "":
		entries, ignored, err := timeline.ScanDir(dir)
		if err != nil {
			return nil, err
		}
		for _, name := range ignored {
			fmt.Fprintf(os.Stderr, "[!] Пропущен файл: %s\n", name)
		}
		return entries, nil
	default:
		return nil, errors.Validation("--timeline or --dir is required")
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("text")
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if mode, _ := f.GetString("mode"); mode != "" {
		cfg.Render.Mode = mode
	}
	if f.Changed("workers") {
		cfg.Render.Workers, _ = f.GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Логи не должны ломать прогресс-бар.
	if logLevel == "" && cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	log := newLogger(cfg, "daybyday-cli")

	entries, err := renderEntries(cmd)
	if err != nil {
		return err
	}
	if dir, _ := f.GetString("dir"); dir != "" {
		cfg.Source.Root = ""
	}
	settings, err := renderSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, _ := f.GetString("out")
	var store engine.ArtifactStore
	if out != "" {
		store = fileStore{path: out}
	} else {
		sp, err := storage.NewProvider(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		store = artifact.NewStore(sp, cfg.Storage.Prefix)
	}

	pipeline, err := newPipeline(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	w, h := settings.Size()
	fmt.Printf("[*] Фото: %d, %dx%d, режим %s, кадров: %d\n", len(entries), w, h, cfg.Render.Mode, settings.TotalFrames(len(entries)))

	bar := progress.NewBar(os.Stderr, "Rendering")
	start := time.Now()
	job := engine.NewJob(uuid.NewString(), entries, settings)
	res := pipeline.Run(ctx, job, bar)
	_ = bar.Finish()

	for _, day := range res.Placeholders {
		fmt.Printf("[!] %s: фото не загрузилось, вставлена заглушка\n", day)
	}

	switch res.Status {
	case engine.StatusCompleted:
		fmt.Printf("[+] Готово: %s (кадров: %d, %.1fs)\n", res.Handle, res.Frames, time.Since(start).Seconds())
		return nil
	case engine.StatusCancelled:
		return fmt.Errorf("render cancelled after %d frames", res.Frames)
	default:
		return fmt.Errorf("render failed: %s", res.Reason())
	}
}

// fileStore writes the artifact to a path chosen on the command line.
type fileStore struct {
	path string
}

func (s fileStore) Persist(ctx context.Context, jobID string, a video.Artifact) (string, error) {
	path := s.path
	if filepath.Ext(path) == "" && a.Ext != "" {
		path += "." + a.Ext
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", errors.WrapWithCode(err, errors.CodeStorage, "cli.persist", "output directory could not be created")
		}
	}

	src, err := a.Open()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeStorage, "cli.persist", "artifact could not be read")
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeStorage, "cli.persist", "output file could not be created")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", errors.WrapWithCode(err, errors.CodeStorage, "cli.persist", "output file could not be written")
	}
	if err := dst.Close(); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeStorage, "cli.persist", "output file could not be written")
	}
	return path, nil
}
