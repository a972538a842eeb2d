// Package metrics exposes Prometheus counters for decoding, playback and export.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"teslacam/internal/logging"
)

var (
	// FramesDecoded counts frames returned by camera decoders.
	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teslacam_frames_decoded_total",
		Help: "Total number of frames decoded per camera",
	}, []string{"camera"})

	// FramesDropped counts frames skipped after a decode error.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teslacam_frames_dropped_total",
		Help: "Total number of frames skipped after a decode error per camera",
	}, []string{"camera"})

	// SegmentsUnavailable counts segment files that could not be opened.
	SegmentsUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teslacam_segments_unavailable_total",
		Help: "Total number of segment files that failed to open",
	})

	// FramesComposed counts composite frames produced by playback.
	FramesComposed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teslacam_frames_composed_total",
		Help: "Total number of composite frames shown during playback",
	})

	// ExportFramesWritten counts frames handed to the encoder.
	ExportFramesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teslacam_export_frames_written_total",
		Help: "Total number of composite frames written by exports",
	})

	// Exports counts finished exports by result.
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teslacam_exports_total",
		Help: "Total number of exports by result",
	}, []string{"result"})

	// ExportDuration measures wall time per export.
	ExportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teslacam_export_duration_seconds",
		Help:    "Export duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

// RecordExport records the outcome and duration of one export.
func RecordExport(err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	Exports.WithLabelValues(result).Inc()
	ExportDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
// An empty addr disables the endpoint.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	log := logging.WithComponent("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
