package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Streams       StreamMetrics    `json:"streams"`
	Printers      PrinterMetrics   `json:"printers"`
	Filaments     FilamentMetrics  `json:"filaments"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// StreamMetrics counts open report streams.
type StreamMetrics struct {
	Active int `json:"active"`
}

// PrinterMetrics summarises the printer registry.
type PrinterMetrics struct {
	Total            int    `json:"total"`
	Active           string `json:"active,omitempty"`
	WithCertificates int    `json:"with_certificates"`
}

// FilamentMetrics summarises the spool catalogue.
type FilamentMetrics struct {
	Total int `json:"total"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns process and registry statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Streams: StreamMetrics{
			Active: s.streams.count(),
		},
		Filaments: FilamentMetrics{
			Total: len(s.filaments.List()),
		},
	}

	printers := s.printers.List()
	metrics.Printers.Total = len(printers)
	for _, p := range printers {
		if p.Active {
			metrics.Printers.Active = p.Serial
		}
		if s.certs.Exists(p.Name) {
			metrics.Printers.WithCertificates++
		}
	}

	if s.db != nil && s.db.DB != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
