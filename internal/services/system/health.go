package system

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"norelock.dev/osmcremote/internal/utils"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	// StatusUp indicates the component is healthy.
	StatusUp HealthStatus = "up"
	// StatusDown indicates the component is unhealthy.
	StatusDown HealthStatus = "down"
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded HealthStatus = "degraded"
)

// ComponentHealth represents the health of a system component.
type ComponentHealth struct {
	Name        string         `json:"name"`
	Status      HealthStatus   `json:"status"`
	Description string         `json:"description,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Latency     int64          `json:"latency_ms,omitempty"` // Check time in milliseconds
	LastChecked time.Time      `json:"last_checked"`
}

// SystemHealth represents the overall health of the system.
type SystemHealth struct {
	Status      HealthStatus      `json:"status"`
	Components  []ComponentHealth `json:"components"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Uptime      int64             `json:"uptime_seconds"`
	StartTime   time.Time         `json:"start_time"`
	GoVersion   string            `json:"go_version"`
	GoRoutines  int               `json:"go_routines"`
	MemStats    MemoryStats       `json:"memory_stats"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	Alloc     uint64 `json:"alloc_bytes"`      // Bytes allocated and still in use
	Sys       uint64 `json:"sys_bytes"`        // Bytes obtained from system
	NumGC     uint32 `json:"num_gc"`           // Number of completed GC cycles
	HeapAlloc uint64 `json:"heap_alloc_bytes"` // Bytes allocated and still in use
}

// Check inspects one component. Checks must be cheap; the media center is
// never probed over the network from here.
type Check func(ctx context.Context) (HealthStatus, string, map[string]any)

// HealthService provides health checking functionality.
type HealthService struct {
	logger         *utils.Logger
	startTime      time.Time
	version        string
	environment    string
	checks         map[string]Check
	componentCache map[string]ComponentHealth
	cacheMutex     sync.RWMutex
	checkInterval  time.Duration
}

// HealthServiceConfig contains configuration for the health service.
type HealthServiceConfig struct {
	Version       string
	Environment   string
	CheckInterval time.Duration
}

// NewHealthService creates a new health service.
func NewHealthService(logger *utils.Logger, config HealthServiceConfig) *HealthService {
	interval := config.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthService{
		logger:         logger.Named("health_service"),
		startTime:      time.Now(),
		version:        config.Version,
		environment:    config.Environment,
		checks:         make(map[string]Check),
		componentCache: make(map[string]ComponentHealth),
		checkInterval:  interval,
	}
}

// Register adds a component check. Call before Start.
func (s *HealthService) Register(name string, check Check) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.checks[name] = check
}

// Start begins periodic health checks.
func (s *HealthService) Start(ctx context.Context) {
	s.logger.Info("Starting health service", "interval", s.checkInterval)

	s.CheckHealth(ctx)

	go func() {
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping health service")
				return
			case <-ticker.C:
				s.CheckHealth(ctx)
			}
		}
	}()
}

// CheckHealth runs every registered check.
func (s *HealthService) CheckHealth(ctx context.Context) {
	s.logger.Debug("Performing health check")

	s.cacheMutex.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.cacheMutex.RUnlock()

	for name, check := range checks {
		start := time.Now()
		status, description, details := check(ctx)
		latency := time.Since(start).Milliseconds()

		if status != StatusUp {
			s.logger.Warn("Component is not healthy", "component", name, "status", string(status), "description", description)
		}
		s.updateComponentHealth(name, status, description, details, latency)
	}
}

// GetHealth returns the current health status of the system.
func (s *HealthService) GetHealth(ctx context.Context) SystemHealth {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()

	components := make([]ComponentHealth, 0, len(s.componentCache))
	for _, component := range s.componentCache {
		components = append(components, component)
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i].Name < components[j].Name
	})

	// Determine overall status
	status := StatusUp
	for _, component := range components {
		if component.Status == StatusDown {
			status = StatusDown
			break
		} else if component.Status == StatusDegraded {
			status = StatusDegraded
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemHealth{
		Status:      status,
		Components:  components,
		Version:     s.version,
		Environment: s.environment,
		Uptime:      int64(time.Since(s.startTime).Seconds()),
		StartTime:   s.startTime,
		GoVersion:   runtime.Version(),
		GoRoutines:  runtime.NumGoroutine(),
		MemStats: MemoryStats{
			Alloc:     memStats.Alloc,
			Sys:       memStats.Sys,
			NumGC:     memStats.NumGC,
			HeapAlloc: memStats.HeapAlloc,
		},
	}
}

// updateComponentHealth updates the health status of a component in the cache.
func (s *HealthService) updateComponentHealth(name string, status HealthStatus, description string, details map[string]any, latency int64) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.componentCache[name] = ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		Details:     details,
		Latency:     latency,
		LastChecked: time.Now(),
	}
}
