package exporter

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"teslacam/models"
	"teslacam/track"
)

// Snapshot renders the composite at fraction f of the event to a PNG file
// and returns the reference frame it shows.
func (e *Exporter) Snapshot(ctx context.Context, ev *models.Event, f float64, outputPath string) (int, error) {
	ts, err := track.Load(ctx, ev, e.opener)
	if err != nil {
		return 0, fmt.Errorf("load event: %w", err)
	}
	defer ts.Close()

	target := ts.SeekFraction(f)
	img := e.comp.Compose(ts.ReadAll())

	out, err := os.Create(outputPath)
	if err != nil {
		return target, err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return target, fmt.Errorf("encode png: %w", err)
	}
	return target, out.Close()
}
