package api

import (
	"context"
	"sync"
	"time"

	"github.com/sajjad-MoBe/txlog/internal/logfile"
)

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Details   any       `json:"details,omitempty"`
}

// Healthy reports whether the status is "ok".
func (s HealthStatus) Healthy() bool {
	return s.Status == "ok"
}

// HealthChecker defines the interface for health checks
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthManager manages health checks
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	status   map[string]HealthStatus
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		status:   make(map[string]HealthStatus),
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// RunHealthChecks runs all registered health checks and reports whether all
// of them passed.
func (hm *HealthManager) RunHealthChecks(ctx context.Context) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	healthy := true
	for name, checker := range hm.checkers {
		status := checker.Check(ctx)
		hm.status[name] = status
		healthy = healthy && status.Healthy()
	}
	return healthy
}

// GetStatus returns the current health status
func (hm *HealthManager) GetStatus() map[string]HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]HealthStatus)
	for k, v := range hm.status {
		status[k] = v
	}
	return status
}

// LogHealthChecker checks that the log directory is readable and that the
// manager has not recorded write errors.
type LogHealthChecker struct {
	manager *logfile.Manager
}

// NewLogHealthChecker creates a new log health checker
func NewLogHealthChecker(manager *logfile.Manager) *LogHealthChecker {
	return &LogHealthChecker{manager: manager}
}

// Check implements HealthChecker
func (c *LogHealthChecker) Check(ctx context.Context) HealthStatus {
	start := time.Now()
	versions, err := c.manager.LogFiles().Versions()
	duration := time.Since(start)

	if err != nil {
		return HealthStatus{
			Status:    "error",
			Message:   "Log directory is not readable",
			Timestamp: time.Now(),
			Details: map[string]interface{}{
				"error":    err.Error(),
				"duration": duration.String(),
			},
		}
	}

	metrics := c.manager.Metrics()
	if metrics.ErrorCount > 0 {
		return HealthStatus{
			Status:    "degraded",
			Message:   "Log manager recorded write errors",
			Timestamp: time.Now(),
			Details: map[string]interface{}{
				"errors": metrics.ErrorCount,
			},
		}
	}

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"files":           len(versions),
			"current_version": metrics.CurrentVersion,
			"duration":        duration.String(),
		},
	}
}
