package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// handleMetrics serves GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full
// prometheus client.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	fmt.Fprintf(w, "# HELP relayd_relay_calls_total Total relay calls received.\n")
	fmt.Fprintf(w, "# TYPE relayd_relay_calls_total counter\n")
	fmt.Fprintf(w, "relayd_relay_calls_total %d\n", s.metrics.RelayCalls.Load())

	fmt.Fprintf(w, "# HELP relayd_agents_registered_total Total agent registrations.\n")
	fmt.Fprintf(w, "# TYPE relayd_agents_registered_total counter\n")
	fmt.Fprintf(w, "relayd_agents_registered_total %d\n", s.metrics.AgentsRegistered.Load())

	fmt.Fprintf(w, "# HELP relayd_messages_queued_total Total messages enqueued for pull delivery.\n")
	fmt.Fprintf(w, "# TYPE relayd_messages_queued_total counter\n")
	fmt.Fprintf(w, "relayd_messages_queued_total %d\n", s.metrics.MessagesQueued.Load())

	fmt.Fprintf(w, "# HELP relayd_messages_pushed_total Total successful pushes to callback addresses.\n")
	fmt.Fprintf(w, "# TYPE relayd_messages_pushed_total counter\n")
	fmt.Fprintf(w, "relayd_messages_pushed_total %d\n", s.metrics.MessagesPushed.Load())

	fmt.Fprintf(w, "# HELP relayd_push_failures_total Total failed pushes.\n")
	fmt.Fprintf(w, "# TYPE relayd_push_failures_total counter\n")
	fmt.Fprintf(w, "relayd_push_failures_total %d\n", s.metrics.PushFailures.Load())

	fmt.Fprintf(w, "# HELP relayd_queue_drains_total Total poll drains.\n")
	fmt.Fprintf(w, "# TYPE relayd_queue_drains_total counter\n")
	fmt.Fprintf(w, "relayd_queue_drains_total %d\n", s.metrics.QueueDrains.Load())

	fmt.Fprintf(w, "# HELP relayd_uptime_seconds Seconds since the relay started.\n")
	fmt.Fprintf(w, "# TYPE relayd_uptime_seconds gauge\n")
	fmt.Fprintf(w, "relayd_uptime_seconds %.0f\n", time.Since(s.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "# HELP go_goroutines Number of goroutines.\n")
	fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
	fmt.Fprintf(w, "go_goroutines %d\n", runtime.NumGoroutine())

	fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Bytes of allocated heap objects.\n")
	fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n", mem.Alloc)
}
