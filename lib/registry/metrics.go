package registry

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/VictoriaMetrics/metrics"
)

// process wide metrics, shared by all registries
var (
	socketsCreated  = metrics.NewCounter(`netstack_sockets_created_total`)
	bytesRead       = metrics.NewCounter(`netstack_read_bytes_total`)
	bytesWritten    = metrics.NewCounter(`netstack_written_bytes_total`)
	connectDuration = metrics.NewHistogram(`netstack_connect_duration_seconds`)
)

var socketsOpen atomic.Int64

func init() {
	metrics.NewGauge(`netstack_sockets_open`, func() float64 {
		return float64(socketsOpen.Load())
	})
}

func eventCounter(kind socket.Kind) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`netstack_events_total{kind=%q}`, kind.String()))
}

func errorCounter(code socket.ErrorCode) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`netstack_errors_total{code=%q}`, code.String()))
}

// WritePrometheus writes the process wide metrics in Prometheus text format
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// observe records an event in the process wide metrics and the registry stats
func (r *Registry) observe(ev socket.Event) {
	eventCounter(ev.Kind).Inc()

	switch ev.Kind {
	case socket.KindConnected:
		if start, ok := r.connecting.LoadAndDelete(ev.Identifier); ok {
			connectDuration.Update(time.Since(start).Seconds())
			r.stats.connectTime.UpdateSince(start)
		}
	case socket.KindError:
		r.connecting.Delete(ev.Identifier)
		if ev.Err != nil {
			errorCounter(ev.Err.Code).Inc()
		}
		if ev.Fatal() {
			r.stats.failed.Inc(1)
		}
	case socket.KindDataAvailable:
		n := ev.Count
		bytesRead.Add(n)
		r.stats.read.Mark(int64(n))
		r.stats.readSizes.Update(int64(n))
	case socket.KindBytesWritten:
		bytesWritten.Add(ev.Count)
		r.stats.written.Mark(int64(ev.Count))
	case socket.KindClosed:
		r.stats.closed.Inc(1)
	}
}
