// Package metrics defines the Prometheus collectors for the ingestion
// pipeline and the folder watcher.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline holds the collectors recorded by the ingest coordinator.
type Pipeline struct {
	DocumentsIngested prometheus.Counter
	DuplicateHits     prometheus.Counter
	IngestDuration    prometheus.Histogram
}

// Watcher holds the collectors recorded by the folder watcher.
type Watcher struct {
	FilesSucceeded prometheus.Counter
	FilesFailed    prometheus.Counter
	RetriesTotal   prometheus.Counter
	QueueDepth     prometheus.Gauge
}

// NewPipeline builds and registers the pipeline collectors.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		DocumentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loreingest",
			Name:      "documents_ingested_total",
			Help:      "Total number of documents persisted",
		}),
		DuplicateHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loreingest",
			Name:      "duplicate_hits_total",
			Help:      "Total ingests resolved to an existing fingerprint",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loreingest",
			Name:      "ingest_duration_seconds",
			Help:      "End to end ingest pipeline duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	reg.MustRegister(p.DocumentsIngested, p.DuplicateHits, p.IngestDuration)
	return p
}

// NewWatcher builds and registers the watcher collectors.
func NewWatcher(reg prometheus.Registerer) *Watcher {
	w := &Watcher{
		FilesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loreingest",
			Subsystem: "watcher",
			Name:      "files_succeeded_total",
			Help:      "Watched files that completed ingestion",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loreingest",
			Subsystem: "watcher",
			Name:      "files_failed_total",
			Help:      "Watched files routed to the failure directory",
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loreingest",
			Subsystem: "watcher",
			Name:      "retries_total",
			Help:      "Ingest attempts beyond the first per file",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loreingest",
			Subsystem: "watcher",
			Name:      "queue_depth",
			Help:      "Files currently queued for processing",
		}),
	}
	reg.MustRegister(w.FilesSucceeded, w.FilesFailed, w.RetriesTotal, w.QueueDepth)
	return w
}
