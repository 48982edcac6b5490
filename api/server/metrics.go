// metrics.go - Metrics collection for the vault node
package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
)

// NodeMetrics holds health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	Records        int     `json:"records"`
	AuditEntries   int     `json:"audit_entries"`
	LedgerOnline   bool    `json:"ledger_connected"`
	LedgerWrites   string  `json:"ledger_writes,omitempty"`
	AuditChainOK   bool    `json:"audit_chain_ok"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	DiskFreeMB     float64 `json:"disk_free_mb"`
	LastActivity   string  `json:"last_activity,omitempty"`
}

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	st := s.vault.Status()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	diskFreeMB := -1.0
	if usage, err := disk.Usage(s.opts.DataDir); err == nil {
		diskFreeMB = float64(usage.Free) / (1024 * 1024)
	}

	cpuLoad := 0.0
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuLoad = pcts[0]
	}

	last := ""
	if !st.LastActivity.IsZero() {
		last = st.LastActivity.UTC().Format(time.RFC3339)
	}

	return NodeMetrics{
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		Records:        st.Records,
		AuditEntries:   st.AuditEntries,
		LedgerOnline:   st.Connected,
		LedgerWrites:   st.LedgerWrites,
		AuditChainOK:   s.vault.VerifyAuditChain() == nil,
		CPULoadPercent: cpuLoad,
		MemoryMB:       float64(m.Alloc) / (1024 * 1024),
		DiskFreeMB:     diskFreeMB,
		LastActivity:   last,
	}
}

// nodeStatus derives a one-word health summary from metrics.
func (s *Server) nodeStatus(m NodeMetrics) string {
	switch {
	case !m.AuditChainOK:
		return "tampered"
	case !s.diskOK(m):
		return "low_disk"
	case !m.LedgerOnline, m.LedgerWrites == "open":
		return "local_only"
	default:
		return "healthy"
	}
}

func (s *Server) diskOK(m NodeMetrics) bool {
	if s.opts.MinFreeBytes == 0 || m.DiskFreeMB < 0 {
		return true
	}
	return m.DiskFreeMB*1024*1024 >= float64(s.opts.MinFreeBytes)
}
