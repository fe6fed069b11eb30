package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

// stats are the in-process statistics of one registry
type stats struct {
	registry metrics.Registry

	created     metrics.Counter
	closed      metrics.Counter
	failed      metrics.Counter
	read        metrics.Meter
	written     metrics.Meter
	readSizes   metrics.Histogram
	connectTime metrics.Timer
}

func newStats() *stats {
	s := &stats{
		registry:    metrics.NewRegistry(),
		created:     metrics.NewCounter(),
		closed:      metrics.NewCounter(),
		failed:      metrics.NewCounter(),
		read:        metrics.NewMeter(),
		written:     metrics.NewMeter(),
		readSizes:   metrics.NewHistogram(metrics.NewExpDecaySample(1028, 0.015)),
		connectTime: metrics.NewTimer(),
	}
	_ = s.registry.Register("sockets.created", s.created)
	_ = s.registry.Register("sockets.closed", s.closed)
	_ = s.registry.Register("sockets.failed", s.failed)
	_ = s.registry.Register("bytes.read", s.read)
	_ = s.registry.Register("bytes.written", s.written)
	_ = s.registry.Register("read.size", s.readSizes)
	_ = s.registry.Register("connect.time", s.connectTime)
	return s
}

// stop ends the background ticking of the meters
func (s *stats) stop() {
	s.read.Stop()
	s.written.Stop()
	s.connectTime.Stop()
}

// Stats is a snapshot of the statistics of a registry
type Stats struct {
	Open    int   `json:"open"`
	Created int64 `json:"created"`
	Closed  int64 `json:"closed"`
	Failed  int64 `json:"failed"`

	BytesRead     int64   `json:"bytesRead"`
	BytesWritten  int64   `json:"bytesWritten"`
	ReadRate1m    float64 `json:"readRate1m"`
	WriteRate1m   float64 `json:"writeRate1m"`
	ReadSizeMean  float64 `json:"readSizeMean"`
	ReadSizeP99   float64 `json:"readSizeP99"`
	Connects      int64   `json:"connects"`
	ConnectMeanMs float64 `json:"connectMeanMs"`
	ConnectP99Ms  float64 `json:"connectP99Ms"`
}

// Stats returns a snapshot of the registry statistics
func (r *Registry) Stats() Stats {
	read := r.stats.read.Snapshot()
	written := r.stats.written.Snapshot()
	sizes := r.stats.readSizes.Snapshot()
	connects := r.stats.connectTime.Snapshot()

	return Stats{
		Open:          r.Len(),
		Created:       r.stats.created.Count(),
		Closed:        r.stats.closed.Count(),
		Failed:        r.stats.failed.Count(),
		BytesRead:     read.Count(),
		BytesWritten:  written.Count(),
		ReadRate1m:    read.Rate1(),
		WriteRate1m:   written.Rate1(),
		ReadSizeMean:  sizes.Mean(),
		ReadSizeP99:   sizes.Percentile(0.99),
		Connects:      connects.Count(),
		ConnectMeanMs: connects.Mean() / float64(time.Millisecond),
		ConnectP99Ms:  connects.Percentile(0.99) / float64(time.Millisecond),
	}
}

// String returns a string representation of the stats
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sockets:\n")
	fmt.Fprintf(&b, "  Open:     %d\n", s.Open)
	fmt.Fprintf(&b, "  Created:  %d\n", s.Created)
	fmt.Fprintf(&b, "  Closed:   %d\n", s.Closed)
	fmt.Fprintf(&b, "  Failed:   %d\n", s.Failed)
	fmt.Fprintf(&b, "Traffic:\n")
	fmt.Fprintf(&b, "  Read:     %d bytes (%.1f B/s)\n", s.BytesRead, s.ReadRate1m)
	fmt.Fprintf(&b, "  Written:  %d bytes (%.1f B/s)\n", s.BytesWritten, s.WriteRate1m)
	fmt.Fprintf(&b, "  Read size mean/p99: %.0f/%.0f bytes\n", s.ReadSizeMean, s.ReadSizeP99)
	fmt.Fprintf(&b, "Connects:\n")
	fmt.Fprintf(&b, "  Count:    %d\n", s.Connects)
	fmt.Fprintf(&b, "  Mean/p99: %.2f/%.2f ms\n", s.ConnectMeanMs, s.ConnectP99Ms)
	return b.String()
}
