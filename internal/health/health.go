package health

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"github.com/hacksphere/esp32-gateway/internal/gateway"
)

// DeviceSummary is the device portion of the health report.
type DeviceSummary struct {
	Connected   bool       `json:"connected"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
	IsStreaming bool       `json:"isStreaming"`
}

// Snapshot is the health report served on /healthz.
type Snapshot struct {
	Status        string        `json:"status"`
	Uptime        string        `json:"uptime"`
	Clients       int           `json:"clients"`
	Device        DeviceSummary `json:"device"`
	CPUPercent    float64       `json:"cpuPercent"`
	MemoryPercent float64       `json:"memoryPercent"`
	Goroutines    int           `json:"goroutines"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Handler serves a JSON process and gateway health snapshot.
type Handler struct {
	Registry *gateway.Registry
	Logger   zerolog.Logger

	start time.Time
}

// NewHandler initializes a new health handler.
func NewHandler(registry *gateway.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		Registry: registry,
		Logger:   logger.With().Str("component", "health").Logger(),
		start:    time.Now(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := h.Registry.Status()

	snapshot := Snapshot{
		Status:  "ok",
		Uptime:  time.Since(h.start).Round(time.Second).String(),
		Clients: h.Registry.ClientCount(),
		Device: DeviceSummary{
			Connected:   status.Connected,
			LastSeen:    status.LastSeen,
			IsStreaming: status.IsStreaming,
		},
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		snapshot.CPUPercent = percentages[0]
	} else if err != nil {
		h.Logger.Warn().Err(err).Msg("Failed to collect CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.MemoryPercent = vm.UsedPercent
	} else {
		h.Logger.Warn().Err(err).Msg("Failed to collect memory usage")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.Logger.Warn().Err(err).Msg("Failed to write health snapshot")
	}
}
