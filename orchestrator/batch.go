package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"teslacam/exporter"
	"teslacam/internal/logging"
	"teslacam/models"
)

// Exporter renders one event to a file.
type Exporter interface {
	Export(ctx context.Context, ev *models.Event, outputPath string) (exporter.Result, error)
}

// Manifest is the JSON sidecar written next to each exported file.
type Manifest struct {
	EventID  string     `json:"event_id"`
	Category string     `json:"category"`
	Folder   string     `json:"folder,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	Cameras  []string   `json:"cameras"`
	Segments int        `json:"segments"`
	Tags     []string   `json:"tags,omitempty"`
	Notes    string     `json:"notes,omitempty"`
	Output   string     `json:"output"`
	JobID    string     `json:"job_id"`
	Frames   int        `json:"frames"`
	FPS      float64    `json:"fps"`
}

// BatchSummary reports a finished batch.
type BatchSummary struct {
	Exported int
	Failed   int
	Results  []*TaskResult
}

// Batch exports many events through a DAGOrchestrator: one encode task per
// event followed by a manifest task on the single io slot.
type Batch struct {
	exp        Exporter
	outDir     string
	workers    int
	onProgress func(completed, total int, task *Task)
	log        zerolog.Logger
}

// NewBatch creates a batch exporter writing into outDir with the given
// number of concurrent encodes.
func NewBatch(exp Exporter, outDir string, workers int) *Batch {
	return &Batch{
		exp:     exp,
		outDir:  outDir,
		workers: max(workers, 1),
		log:     logging.WithComponent("batch"),
	}
}

// SetProgressCallback receives task completion counts.
func (b *Batch) SetProgressCallback(cb func(completed, total int, task *Task)) *Batch {
	b.onProgress = cb
	return b
}

// Plan builds the task graph for evs without running it.
func (b *Batch) Plan(evs []models.Event) (*DAGOrchestrator, error) {
	orch := NewDAGOrchestrator([]ResourceConstraint{
		{Type: ResourceEncode, MaxSlots: b.workers},
		{Type: ResourceIO, MaxSlots: 1},
	})
	orch.SetProgressCallback(b.onProgress)

	used := make(map[string]int)
	for i := range evs {
		ev := &evs[i]
		name := OutputName(ev)
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}

		export := &exportJob{exp: b.exp, ev: ev, output: filepath.Join(b.outDir, name+".mp4")}
		encodeID := "encode:" + name
		if err := orch.AddTask(&Task{ID: encodeID, Job: export, Resource: ResourceEncode}); err != nil {
			return nil, err
		}

		manifest := &manifestJob{export: export, output: filepath.Join(b.outDir, name+".json")}
		if err := orch.AddTask(&Task{
			ID:           "manifest:" + name,
			Job:          manifest,
			Dependencies: []string{encodeID},
			Resource:     ResourceIO,
		}); err != nil {
			return nil, err
		}
	}
	return orch, nil
}

// Run exports every event. Individual failures are counted, not returned;
// the error is non-nil only for setup problems or cancellation.
func (b *Batch) Run(ctx context.Context, evs []models.Event) (BatchSummary, error) {
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return BatchSummary{}, fmt.Errorf("create output dir: %w", err)
	}

	orch, err := b.Plan(evs)
	if err != nil {
		return BatchSummary{}, err
	}

	b.log.Info().Int("events", len(evs)).Int("workers", b.workers).Str("dir", b.outDir).Msg("batch export started")

	results, err := orch.Execute(ctx)
	summary := BatchSummary{Results: results}
	for _, r := range results {
		if !strings.HasPrefix(r.TaskID, "encode:") {
			continue
		}
		if r.Success {
			summary.Exported++
		} else {
			summary.Failed++
			b.log.Error().Err(r.Error).Str("output", r.OutputPath).Msg("event export failed")
		}
	}

	b.log.Info().Int("exported", summary.Exported).Int("failed", summary.Failed).Msg("batch export finished")
	return summary, err
}

// OutputName derives a file stem from the event category and start time,
// or from the stable ID when the event has no timestamp.
func OutputName(ev *models.Event) string {
	if ev.HasTime {
		return fmt.Sprintf("%s_%s", ev.Category, ev.Start.Format("2006-01-02_15-04-05"))
	}
	stem := strings.TrimSuffix(filepath.Base(ev.ID), filepath.Ext(ev.ID))
	return fmt.Sprintf("%s_%s", ev.Category, stem)
}

type exportJob struct {
	exp    Exporter
	ev     *models.Event
	output string
	result exporter.Result
}

func (j *exportJob) Run(ctx context.Context) error {
	res, err := j.exp.Export(ctx, j.ev, j.output)
	j.result = res
	if err != nil {
		os.Remove(j.output)
	}
	return err
}

func (j *exportJob) GetOutputPath() string { return j.output }

// manifestJob reads export.result, which is complete once its encode task
// has finished.
type manifestJob struct {
	export *exportJob
	output string
}

func (j *manifestJob) Run(ctx context.Context) error {
	ev, res := j.export.ev, j.export.result

	m := Manifest{
		EventID:  ev.ID,
		Category: string(ev.Category),
		Folder:   ev.Folder,
		Segments: ev.SegmentCount(),
		Tags:     ev.Tags,
		Notes:    ev.Notes,
		Output:   filepath.Base(res.Output),
		JobID:    res.JobID,
		Frames:   res.Frames,
		FPS:      res.FPS,
	}
	if ev.HasTime {
		start := ev.Start
		m.Start = &start
	}
	for _, c := range ev.Cameras() {
		m.Cameras = append(m.Cameras, c.String())
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(j.output, data, 0o644)
}

func (j *manifestJob) GetOutputPath() string { return j.output }
