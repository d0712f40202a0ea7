package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/cache"
	"github.com/qubitlab/subisom/internal/config"
)

// SystemHandlers serves health and maintenance endpoints.
type SystemHandlers struct {
	backend   backend.Backend
	store     *cache.Store
	cfg       *config.Config
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system endpoint handlers.
func NewSystemHandlers(be backend.Backend, store *cache.Store, cfg *config.Config, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		backend:   be,
		store:     store,
		cfg:       cfg,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_api").Logger(),
	}
}

// SystemHealthResponse is the system health payload.
type SystemHealthResponse struct {
	Status        string  `json:"status"`
	Backend       string  `json:"backend"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	CacheHealthy  *bool   `json:"cache_healthy,omitempty"`
}

// HandleSystemHealth reports process and dependency health.
func (h *SystemHandlers) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemHealthResponse{
		Status:        "healthy",
		Backend:       h.backend.Name(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
	}

	if h.store != nil {
		healthy := true
		if err := h.store.DB().QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Cache database health check failed")
			healthy = false
			resp.Status = "degraded"
		}
		resp.CacheHealthy = &healthy
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

// HandleCacheStats reports circuit cache contents.
func (h *SystemHandlers) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(h.log, w, http.StatusNotFound, "cache disabled")
		return
	}

	stats, err := h.store.Stats()
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, stats)
}

// HandleCachePrune deletes entries unused for longer than the
// max_age_hours query parameter (default from configuration).
func (h *SystemHandlers) HandleCachePrune(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(h.log, w, http.StatusNotFound, "cache disabled")
		return
	}

	maxAgeHours := h.cfg.Cache.MaxAgeHours
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(h.log, w, http.StatusBadRequest, "max_age_hours must be a positive integer")
			return
		}
		maxAgeHours = parsed
	}

	deleted, err := h.store.Prune(time.Duration(maxAgeHours) * time.Hour)
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// getSystemStats returns CPU and memory usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	var cpuPercent, memPercent float64

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		cpuPercent = percentages[0]
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		memPercent = vmStat.UsedPercent
	}

	return cpuPercent, memPercent
}
