// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/services/system"
	"norelock.dev/osmcremote/internal/utils"
)

// HealthHandler handles HTTP requests related to system health.
type HealthHandler struct {
	logger    *utils.Logger
	healthSvc *system.HealthService
	config    *config.Config
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(
	logger *utils.Logger,
	healthSvc *system.HealthService,
	config *config.Config,
	version string,
) *HealthHandler {
	return &HealthHandler{
		logger:    logger.Named("health_handler"),
		healthSvc: healthSvc,
		config:    config,
		startTime: time.Now(),
		version:   version,
	}
}

// Check handles requests to check the health of the system.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	response := map[string]any{
		"status":     health.Status,
		"version":    h.version,
		"uptime":     time.Since(h.startTime).String(),
		"components": health.Components,
	}

	utils.RespondWithJSON(w, statusFor(health.Status), response)
}

// DetailedCheck handles requests for detailed health information.
func (h *HealthHandler) DetailedCheck(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	detailedResponse := map[string]any{
		"health":       health,
		"uptime":       time.Since(h.startTime).String(),
		"startTime":    h.startTime,
		"environment":  h.config.Environment,
		"buildInfo":    h.getBuildInfo(),
		"configStatus": h.getConfigStatus(),
	}

	utils.RespondWithJSON(w, statusFor(health.Status), detailedResponse)
}

// statusFor fails the check only when a component is down.
func statusFor(status system.HealthStatus) int {
	if status == system.StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// getBuildInfo returns information about the build.
func (h *HealthHandler) getBuildInfo() map[string]any {
	info := map[string]any{
		"version":   h.version,
		"goVersion": runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info["module"] = bi.Main.Path
	}
	return info
}

// getConfigStatus returns the status of the configuration.
func (h *HealthHandler) getConfigStatus() map[string]any {
	mc := h.config.MediaCenter
	return map[string]any{
		"environment":      h.config.Environment,
		"mediacenterHost":  mc.Host,
		"transport":        mc.Transport,
		"failureThreshold": mc.FailureThreshold,
		"discovery":        h.config.Discovery.Enabled,
		"loaded":           true,
	}
}
