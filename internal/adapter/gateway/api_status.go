package gateway

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	RelayCalls         atomic.Int64
	AgentsRegistered   atomic.Int64
	AgentsDeregistered atomic.Int64
	MessagesQueued     atomic.Int64
	MessagesPushed     atomic.Int64
	PushFailures       atomic.Int64
	QueueDrains        atomic.Int64
}

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Relay    RelayStatus    `json:"relay"`
	Registry RegistryStatus `json:"registry"`
	Queue    QueueStatus    `json:"queue"`
}

// RelayStatus holds relay overview info.
type RelayStatus struct {
	Mode          string `json:"mode"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	CallsTotal    int64  `json:"calls_total"`
}

// RegistryStatus holds registration counts.
type RegistryStatus struct {
	Agents            int   `json:"agents"`
	RegisteredTotal   int64 `json:"registered_total"`
	DeregisteredTotal int64 `json:"deregistered_total"`
}

// QueueStatus holds queue traffic counters.
type QueueStatus struct {
	QueuedTotal  int64 `json:"queued_total"`
	PushedTotal  int64 `json:"pushed_total"`
	PushFailures int64 `json:"push_failures_total"`
	DrainsTotal  int64 `json:"drains_total"`
}

// handleStatus serves GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agents, err := s.deps.Registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Relay: RelayStatus{
			Mode:          string(s.deps.Dispatcher.Mode()),
			UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
			CallsTotal:    s.metrics.RelayCalls.Load(),
		},
		Registry: RegistryStatus{
			Agents:            len(agents),
			RegisteredTotal:   s.metrics.AgentsRegistered.Load(),
			DeregisteredTotal: s.metrics.AgentsDeregistered.Load(),
		},
		Queue: QueueStatus{
			QueuedTotal:  s.metrics.MessagesQueued.Load(),
			PushedTotal:  s.metrics.MessagesPushed.Load(),
			PushFailures: s.metrics.PushFailures.Load(),
			DrainsTotal:  s.metrics.QueueDrains.Load(),
		},
	})
}
