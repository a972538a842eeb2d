package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"teslacam/compositor"
	"teslacam/concatenator"
	"teslacam/config"
	"teslacam/events"
	"teslacam/exporter"
	"teslacam/ffmpeg"
	"teslacam/internal/logging"
	"teslacam/internal/metrics"
	"teslacam/library"
	"teslacam/metadata"
	"teslacam/models"
	"teslacam/orchestrator"
	"teslacam/playback"
	"teslacam/track"
)

func main() {
	// Configuration: CLI flags > config file > defaults
	cfg, err := config.LoadConfig(os.Args[1:])
	switch {
	case errors.Is(err, flag.ErrHelp):
		config.Usage()
		return
	case errors.Is(err, config.ErrNoCommand):
		config.Usage()
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.SaveTo != "" {
		if err := config.SaveConfigFile(cfg, cfg.SaveTo); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", cfg.SaveTo)
		return
	}

	if cfg.DryRun {
		cfg.PrintConfig(os.Stdout)
		fmt.Println("\nConfiguration is valid. Nothing will be run.")
		return
	}

	// Ctrl+C and SIGTERM cancel the running command
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			logging.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()

	if err := run(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nCancelled")
			os.Exit(130) // Standard exit code for SIGINT
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *metadata.Store
	opener *ffmpeg.Opener
	comp   *compositor.Compositor
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := metadata.Open(cfg.MetadataDir)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer store.Close()

	opener := ffmpeg.NewOpener()
	opener.Threads = cfg.Threads

	a := &app{
		cfg:    cfg,
		log:    logging.WithComponent("cli"),
		store:  store,
		opener: opener,
		comp:   compositor.New(cfg.Grid.CellWidth, cfg.Grid.CellHeight),
	}

	evs, err := a.loadEvents(ctx)
	if err != nil {
		return err
	}

	switch cfg.Command {
	case config.CommandList:
		return a.list(evs)
	case config.CommandExportAll:
		return a.exportAll(ctx, evs)
	}

	ev, err := events.Find(evs, cfg.Request.Event)
	if err != nil {
		return err
	}

	switch cfg.Command {
	case config.CommandPlay:
		return a.play(ctx, ev)
	case config.CommandExport:
		return a.export(ctx, ev)
	case config.CommandSnapshot:
		return a.snapshot(ctx, ev)
	case config.CommandConcat:
		return a.concat(ctx, ev)
	case config.CommandTag:
		return a.tag(ctx, ev)
	}
	return fmt.Errorf("unhandled command %s", cfg.Command)
}

// loadEvents scans the library, groups segments into events and applies
// stored tags, then the tag filter.
func (a *app) loadEvents(ctx context.Context) ([]models.Event, error) {
	category, err := models.ParseCategory(a.cfg.Category)
	if err != nil {
		return nil, err
	}

	listings, err := library.Scan(a.cfg.Root, category)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", a.cfg.Root, err)
	}

	evs := events.NewSegmenter().SetGapThreshold(a.cfg.GapThreshold).Segment(listings)
	if err := events.Annotate(ctx, a.store, evs); err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}

	a.log.Debug().Int("folders", len(listings)).Int("events", len(evs)).Msg("library loaded")
	return events.Filter(evs, a.cfg.Request.Filter), nil
}

func (a *app) list(evs []models.Event) error {
	if len(evs) == 0 {
		fmt.Println("No events found")
		return nil
	}
	for i, ev := range evs {
		cams := make([]string, 0, 4)
		for _, c := range ev.Cameras() {
			cams = append(cams, c.String())
		}
		line := fmt.Sprintf("%4d  %-32s  %-22s  %3d segments", i, ev.DisplayName(), strings.Join(cams, ","), ev.SegmentCount())
		if len(ev.Tags) > 0 {
			line += "  [" + strings.Join(ev.Tags, ", ") + "]"
		}
		fmt.Println(line)
		if ev.Notes != "" {
			fmt.Printf("      %s\n", ev.Notes)
		}
	}
	return nil
}

func (a *app) play(ctx context.Context, ev *models.Event) error {
	ts, err := track.Load(ctx, ev, a.opener)
	if err != nil {
		return err
	}

	sink := playback.SinkFunc(func(u playback.Update) {
		fmt.Printf("\r%s  frame %d/%d", u.Label, u.Position, u.Total)
	})
	sched := playback.New(ts, a.comp, sink, playback.WithSpeed(a.cfg.Playback.Speed))
	defer sched.Close()

	fmt.Printf("Playing %s at %gx\n", ev.DisplayName(), sched.Speed())
	if a.cfg.Request.At > 0 {
		sched.Seek(a.cfg.Request.At)
	}

	err = sched.Run(ctx, a.cfg.Playback.TickInterval)
	fmt.Println()
	return err
}

func (a *app) newExporter() *exporter.Exporter {
	return exporter.New(a.opener, a.comp, exporter.FFmpegSinks(exporter.EncoderSettings{
		Codec:           a.cfg.Video.Codec,
		HardwareEncoder: a.cfg.Video.HardwareEncoder,
		Preset:          a.cfg.Video.Preset,
		CRF:             a.cfg.Video.CRF,
	}))
}

func printProgress(p *models.Progress) {
	fmt.Printf("\r%s", p.FormatSummary())
}

func (a *app) export(ctx context.Context, ev *models.Event) error {
	exp := a.newExporter().SetProgressCallback(printProgress)

	res, err := exp.Export(ctx, ev, a.cfg.Request.Output)
	fmt.Println()
	if err != nil {
		os.Remove(a.cfg.Request.Output)
		return err
	}

	fmt.Printf("Exported %d frames (%s reference, %.2f fps) to %s in %s\n",
		res.Frames, res.Camera, res.FPS, res.Output, res.Duration.Round(time.Millisecond))
	return nil
}

func (a *app) exportAll(ctx context.Context, evs []models.Event) error {
	if len(evs) == 0 {
		fmt.Println("No events to export")
		return nil
	}

	batch := orchestrator.NewBatch(a.newExporter(), a.cfg.Request.Output, a.cfg.Workers).
		SetProgressCallback(func(completed, total int, task *orchestrator.Task) {
			status := "done"
			if task.Error != nil {
				status = "failed: " + task.Error.Error()
			}
			fmt.Printf("[%d/%d] %s %s\n", completed, total, task.ID, status)
		})

	summary, err := batch.Run(ctx, evs)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d of %d events to %s\n", summary.Exported, len(evs), a.cfg.Request.Output)
	if summary.Failed > 0 {
		return fmt.Errorf("%d exports failed", summary.Failed)
	}
	return nil
}

func (a *app) snapshot(ctx context.Context, ev *models.Event) error {
	frame, err := a.newExporter().Snapshot(ctx, ev, a.cfg.Request.At, a.cfg.Request.Output)
	if err != nil {
		return err
	}
	fmt.Printf("Saved frame %d of %s to %s\n", frame, ev.DisplayName(), a.cfg.Request.Output)
	return nil
}

func (a *app) concat(ctx context.Context, ev *models.Event) error {
	cam, err := models.ParseCamera(a.cfg.Request.Camera)
	if err != nil {
		return err
	}

	c := concatenator.NewConcatenator(a.cfg.Strict).SetProgressCallback(func(p *models.Progress) {
		fmt.Printf("\rConcatenating: %5.1f%%  %s", p.Percent(), p.CurrentTime)
	})
	err = c.ConcatenateEvent(ctx, ev, cam, a.cfg.Request.Output)
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s segments of %s to %s\n", cam, ev.DisplayName(), a.cfg.Request.Output)
	return nil
}

func (a *app) tag(ctx context.Context, ev *models.Event) error {
	req := a.cfg.Request
	ann, err := a.store.Update(ctx, ev.ID, func(ann *metadata.Annotation) {
		ann.Tags = append(ann.Tags, req.AddTags...)
		ann.Tags = slices.DeleteFunc(ann.Tags, func(t string) bool {
			return slices.Contains(req.RemoveTags, t)
		})
		if req.Notes != nil {
			ann.Notes = *req.Notes
		}
	})
	if err != nil {
		return err
	}

	a.log.Info().Str("event", ev.ID).Strs("tags", ann.Tags).Msg("annotation updated")
	fmt.Printf("%s  tags: [%s]\n", ev.DisplayName(), strings.Join(ann.Tags, ", "))
	if ann.Notes != "" {
		fmt.Printf("  notes: %s\n", ann.Notes)
	}
	return nil
}
