package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// tagList collects repeated or comma-separated tag flags.
type tagList []string

func (t *tagList) String() string { return strings.Join(*t, ",") }

func (t *tagList) Set(v string) error {
	for _, tag := range strings.Split(v, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			*t = append(*t, tag)
		}
	}
	return nil
}

// newFlagSet defines every flag; values start at the current config so
// defaults printed by -h are the effective ones.
func (c *Config) newFlagSet(out io.Writer) (*flag.FlagSet, *flagValues) {
	fs := flag.NewFlagSet("teslacam", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { printUsage(out) }

	v := &flagValues{}

	// Config file override (handled by LoadConfig before this function is called)
	fs.String("config", "", "Path to config file (default: search standard locations)")

	// Library
	fs.StringVar(&v.root, "root", c.Root, "TeslaCam folder or folder of clips")
	fs.StringVar(&v.category, "category", c.Category, "Category: all, saved, sentry, recent")
	fs.DurationVar(&v.gap, "gap", c.GapThreshold, "Largest gap between segments of one event")
	fs.StringVar(&v.metadataDir, "metadata-dir", c.MetadataDir, "Tag and notes store directory")

	// Ambient
	fs.StringVar(&v.logLevel, "log-level", c.Log.Level, "Log level: trace, debug, info, warn, error")
	fs.StringVar(&v.logFormat, "log-format", c.Log.Format, "Log format: json, console")
	fs.StringVar(&v.metricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address")

	// Playback and grid
	fs.DurationVar(&v.tick, "tick", c.Playback.TickInterval, "Playback scheduler tick interval")
	fs.Float64Var(&v.speed, "speed", c.Playback.Speed, "Playback speed multiplier (0.25-16)")
	fs.StringVar(&v.cellSize, "cell-size", fmt.Sprintf("%dx%d", c.Grid.CellWidth, c.Grid.CellHeight), "Composite cell size WIDTHxHEIGHT")

	// Video settings
	fs.StringVar(&v.videoCodec, "video-codec", c.Video.Codec, "Export video codec")
	fs.IntVar(&v.videoCRF, "video-crf", c.Video.CRF, "Export CRF (0-51, lower = better quality)")
	fs.StringVar(&v.videoPreset, "video-preset", c.Video.Preset, "Export encoder preset")
	fs.StringVar(&v.hwEncoder, "hw-encoder", c.Video.HardwareEncoder, "Hardware encoder, e.g., h264_nvenc")

	// Execution settings
	fs.IntVar(&v.workers, "workers", c.Workers, "Concurrent exports for export-all (0 = auto-detect)")
	fs.IntVar(&v.threads, "threads", c.Threads, "ffmpeg decoder threads per segment (0 = ffmpeg default)")
	fs.BoolVar(&v.strict, "strict", c.Strict, "concat: fail on missing segments or gaps")
	fs.BoolVar(&v.dryRun, "dry-run", c.DryRun, "Show configuration and exit")
	fs.StringVar(&v.saveTo, "save-config", "", "Write the effective configuration to this file and exit")

	// Request
	fs.StringVar(&v.event, "event", c.Request.Event, "Event index from list, or event ID")
	fs.StringVar(&v.output, "output", c.Request.Output, "Output file (directory for export-all)")
	fs.Float64Var(&v.at, "at", c.Request.At, "Start or snapshot position as a fraction 0-1")
	fs.StringVar(&v.camera, "camera", c.Request.Camera, "concat: camera front, back, left, right")
	fs.StringVar(&v.filter, "filter", c.Request.Filter, "Only events carrying this tag")
	fs.Var(&v.add, "add", "tag: tags to add (repeatable, comma-separated)")
	fs.Var(&v.remove, "remove", "tag: tags to remove (repeatable, comma-separated)")
	fs.StringVar(&v.notes, "notes", "", "tag: replace event notes")

	return fs, v
}

type flagValues struct {
	root, category, metadataDir string
	gap                         time.Duration
	logLevel, logFormat         string
	metricsAddr                 string
	tick                        time.Duration
	speed                       float64
	cellSize                    string
	videoCodec, videoPreset     string
	videoCRF                    int
	hwEncoder                   string
	workers, threads            int
	strict, dryRun              bool
	saveTo                      string
	event, output, camera       string
	filter, notes               string
	at                          float64
	add, remove                 tagList
}

// MergeFromFlags parses command-line flags (without the subcommand) and
// overrides config values
func (c *Config) MergeFromFlags(args []string) error {
	return c.mergeFromFlags(args, os.Stderr)
}

func (c *Config) mergeFromFlags(args []string, out io.Writer) error {
	fs, v := c.newFlagSet(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	c.Root = v.root
	c.Category = v.category
	c.GapThreshold = v.gap
	c.MetadataDir = v.metadataDir
	c.Log.Level = v.logLevel
	c.Log.Format = v.logFormat
	c.MetricsAddr = v.metricsAddr
	c.Playback.TickInterval = v.tick
	c.Playback.Speed = v.speed
	c.Video.Codec = v.videoCodec
	c.Video.CRF = v.videoCRF
	c.Video.Preset = v.videoPreset
	c.Video.HardwareEncoder = v.hwEncoder
	c.Workers = v.workers
	c.Threads = v.threads
	c.Strict = v.strict
	c.DryRun = v.dryRun
	c.SaveTo = v.saveTo

	if set["cell-size"] {
		w, h, err := ParseCellSize(v.cellSize)
		if err != nil {
			return err
		}
		c.Grid.CellWidth, c.Grid.CellHeight = w, h
	}

	c.Request.Event = v.event
	c.Request.Output = v.output
	c.Request.At = v.at
	c.Request.Camera = v.camera
	c.Request.Filter = v.filter
	c.Request.AddTags = v.add
	c.Request.RemoveTags = v.remove
	if set["notes"] {
		notes := v.notes
		c.Request.Notes = &notes
	}

	return nil
}

// printUsage prints help text
func printUsage(w io.Writer) {
	fmt.Fprintf(w, `teslacam - Browse, play and export multi-camera dashcam recordings

USAGE:
  teslacam COMMAND [OPTIONS]

COMMANDS:
  list        List events (index, time, cameras, tags)
  play        Play an event headless, printing the time label
  export      Render an event's 2x2 composite to a video file
  export-all  Export every event of the category into a directory
  concat      Join one camera's segments of an event without re-encoding
  snapshot    Save the composite at a position as PNG
  tag         Add or remove tags and set notes on an event

LIBRARY:
  -root string          TeslaCam folder or folder of clips (default: .)
  -category string      all, saved, sentry, recent (default: all)
  -gap duration         Largest gap between segments of one event (default: 15m)
  -metadata-dir string  Tag and notes store (default: ~/.teslacam/metadata)
  -filter string        Only events carrying this tag

SELECTION:
  -event string         Event index from list, or event ID
  -output string        Output file (directory for export-all)
  -at float             Position as a fraction 0-1 (play, snapshot)
  -camera string        concat camera: front, back, left, right (default: front)

PLAYBACK:
  -speed float          Speed multiplier 0.25-16 (default: 1)
  -tick duration        Scheduler tick interval (default: 10ms)
  -cell-size string     Composite cell size WIDTHxHEIGHT (default: 480x270)

EXPORT:
  -video-codec string   Video codec (default: libx264)
  -video-crf int        CRF 0-51, lower = better quality (default: 23)
  -video-preset string  Encoder preset (default: medium)
  -hw-encoder string    Hardware encoder, e.g., h264_nvenc
  -workers int          Concurrent exports for export-all (0 = auto-detect)
  -threads int          ffmpeg decoder threads per segment
  -strict               concat: fail on missing segments or gaps

TAGGING:
  -add string           Tags to add (repeatable, comma-separated)
  -remove string        Tags to remove (repeatable, comma-separated)
  -notes string         Replace event notes

GENERAL:
  -config string        Path to config file
  -log-level string     trace, debug, info, warn, error (default: info)
  -log-format string    json, console (default: console)
  -metrics-addr string  Serve Prometheus metrics, e.g., :9090
  -dry-run              Show effective configuration and exit
  -save-config string   Write effective configuration to a file and exit

EXAMPLES:
  teslacam list -root /media/TESLACAM -category saved
  teslacam play -root /media/TESLACAM -event 0 -speed 2
  teslacam export -root /media/TESLACAM -event 3 -output crash.mp4
  teslacam export-all -root /media/TESLACAM -category sentry -output ./exports -workers 2
  teslacam concat -root /media/TESLACAM -event 3 -camera back -output back.mp4
  teslacam tag -root /media/TESLACAM -event 3 -add crash,insurance -notes "parking lot"

CONFIGURATION FILES:
  Config files are searched in order:
    1. ./teslacam.yaml
    2. ~/.teslacam/config.yaml
    3. /etc/teslacam/config.yaml

  Priority: CLI flags > Config file > Defaults

`)
}

// PrintConfig prints the effective configuration
func (c *Config) PrintConfig(w io.Writer) {
	fmt.Fprintln(w, "Effective configuration")
	fmt.Fprintf(w, "Command:        %s\n", c.Command)
	fmt.Fprintf(w, "Root:           %s\n", c.Root)
	fmt.Fprintf(w, "Category:       %s\n", c.Category)
	fmt.Fprintf(w, "Gap threshold:  %s\n", c.GapThreshold)
	fmt.Fprintf(w, "Metadata dir:   %s\n", c.MetadataDir)
	fmt.Fprintf(w, "Workers:        %d\n", c.Workers)

	fmt.Fprintln(w, "\nPlayback:")
	fmt.Fprintf(w, "  Speed:        %gx\n", c.Playback.Speed)
	fmt.Fprintf(w, "  Tick:         %s\n", c.Playback.TickInterval)
	fmt.Fprintf(w, "  Cell size:    %dx%d\n", c.Grid.CellWidth, c.Grid.CellHeight)

	fmt.Fprintln(w, "\nVideo:")
	if c.Video.HardwareEncoder != "" {
		fmt.Fprintf(w, "  Encoder:      %s\n", c.Video.HardwareEncoder)
	} else {
		fmt.Fprintf(w, "  Codec:        %s\n", c.Video.Codec)
		fmt.Fprintf(w, "  CRF:          %d\n", c.Video.CRF)
	}
	fmt.Fprintf(w, "  Preset:       %s\n", c.Video.Preset)

	if c.Request.Event != "" || c.Request.Output != "" {
		fmt.Fprintln(w, "\nRequest:")
		if c.Request.Event != "" {
			fmt.Fprintf(w, "  Event:        %s\n", c.Request.Event)
		}
		if c.Request.Output != "" {
			fmt.Fprintf(w, "  Output:       %s\n", c.Request.Output)
		}
	}
}
