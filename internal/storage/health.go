package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the result of one backend health check
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthChecker is implemented by backends that can check their connection
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// HealthManager keeps the latest health check result per backend
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthManager creates an empty health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{health: make(map[string]Health)}
}

// UpdateHealth records a health check result
func (hm *HealthManager) UpdateHealth(backend string, h Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[backend] = h
}

// GetHealth returns the last health check result for a backend
func (hm *HealthManager) GetHealth(backend string) (Health, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	h, ok := hm.health[backend]
	return h, ok
}

// GetAllHealth returns a copy of every health check result
func (hm *HealthManager) GetAllHealth() map[string]Health {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	out := make(map[string]Health, len(hm.health))
	for k, v := range hm.health {
		out[k] = v
	}
	return out
}

// IsHealthy reports a fresh healthy result
func (hm *HealthManager) IsHealthy(backend string, maxAge time.Duration) bool {
	h, ok := hm.GetHealth(backend)
	if !ok || time.Since(h.LastCheck) > maxAge {
		return false
	}
	return h.Status == StatusHealthy
}

// StartHealthMonitor runs checker every interval until ctx is done
func StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup, logger *zap.SugaredLogger, hm *HealthManager, backend string, checker HealthChecker, interval time.Duration) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		update := func() {
			h := checker.CheckHealth(ctx)
			hm.UpdateHealth(backend, h)
			if h.Status != StatusHealthy {
				logger.Warnw("storage backend unhealthy", "backend", backend, "error", h.Error)
				return
			}
			logger.Debugw("storage health updated", "backend", backend, "status", h.Status)
		}

		update()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				logger.Infow("stopping storage health monitor", "backend", backend)
				return
			}
		}
	}()
}

// PingHealth turns a ping error into a Health value
func PingHealth(err error) Health {
	h := Health{LastCheck: time.Now(), Status: StatusHealthy, Message: "connection ok"}
	if err != nil {
		h.Status = StatusUnhealthy
		h.Message = "ping failed"
		h.Error = err.Error()
	}
	return h
}
