package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/trellis/internal/database"
)

// SystemHandlers serves host and database status.
type SystemHandlers struct {
	dataDir    string
	universeDB *database.DB
	resultsDB  *database.DB
	historyDB  *database.DB
	log        zerolog.Logger
}

// NewSystemHandlers creates system status handlers. Any database may be nil
// and is then omitted from the report.
func NewSystemHandlers(dataDir string, universeDB, resultsDB, historyDB *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dataDir:    dataDir,
		universeDB: universeDB,
		resultsDB:  resultsDB,
		historyDB:  historyDB,
		log:        log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse is the payload of GET /api/system/status.
type SystemStatusResponse struct {
	Status      string           `json:"status"`
	CPUPercent  float64          `json:"cpu_percent"`
	MemPercent  float64          `json:"mem_percent"`
	MemUsedMB   float64          `json:"mem_used_mb"`
	DiskPercent float64          `json:"disk_percent"`
	DiskFreeGB  float64          `json:"disk_free_gb"`
	Databases   []DatabaseStatus `json:"databases"`
	CheckedAt   string           `json:"checked_at"`
}

// DatabaseStatus reports one database's size and health.
type DatabaseStatus struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	FreePages int64   `json:"free_pages"`
	Healthy   bool    `json:"healthy"`
}

// HandleSystemStatus handles GET /api/system/status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent, memUsedMB := h.hostStats()

	response := SystemStatusResponse{
		Status:     "healthy",
		CPUPercent: cpuPercent,
		MemPercent: memPercent,
		MemUsedMB:  memUsedMB,
		CheckedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get disk usage")
	} else {
		response.DiskPercent = usage.UsedPercent
		response.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	}

	response.Databases = []DatabaseStatus{}
	for _, db := range []*database.DB{h.universeDB, h.resultsDB, h.historyDB} {
		if db == nil {
			continue
		}
		status := h.databaseStatus(r, db)
		if !status.Healthy {
			response.Status = "degraded"
		}
		response.Databases = append(response.Databases, status)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SystemHandlers) databaseStatus(r *http.Request, db *database.DB) DatabaseStatus {
	status := DatabaseStatus{Name: db.Name()}

	status.Healthy = db.HealthCheck(r.Context()) == nil

	stats, err := db.GetStats()
	if err != nil {
		h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		status.Healthy = false
		return status
	}

	status.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
	status.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
	status.PageCount = stats.PageCount
	status.FreePages = stats.FreelistCount
	return status
}

// hostStats samples CPU and memory. The CPU sample uses a 100ms window so
// the endpoint stays fast enough for dashboard polling.
func (h *SystemHandlers) hostStats() (cpuAvg, memPercent, memUsedMB float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0, 0
	}

	return cpuAvg, memStat.UsedPercent, float64(memStat.Used) / 1024 / 1024
}
