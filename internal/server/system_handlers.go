package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealthz reports liveness plus enough context to triage a sick
// deployment: database reachability, scheduler counters and host load.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	dbStatus := "ok"
	if err := s.db.Ping(r.Context()); err != nil {
		dbStatus = err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	sched := s.schedState.Snapshot()
	if sched.ConsecutiveFailures >= 5 {
		status = "degraded"
	}

	payload := map[string]interface{}{
		"status":    status,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"database":  dbStatus,
		"db_pool":   s.db.PoolStats(),
		"scheduler": sched,
		"system":    getSystemStats(),
	}
	writeJSON(w, httpStatus, payload)
}

// getSystemStats samples host CPU and memory. Failures degrade to absent
// fields, never to an unhealthy report.
func getSystemStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memory_percent"] = vm.UsedPercent
		stats["memory_used_mb"] = vm.Used / 1024 / 1024
		stats["memory_total_mb"] = vm.Total / 1024 / 1024
	}
	return stats
}
