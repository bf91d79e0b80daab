package handler

import (
	"context"
	"net/http"
	"time"

	"voucher-storefront/internal/scheduler"
	"voucher-storefront/pkg/logger"
)

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Counter reports how many records a store holds
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// NotifierStatus reports notifier connection details
type NotifierStatus interface {
	ConnectionStatus() map[string]interface{}
}

// LastRunReporter reports the most recent catalog sync
type LastRunReporter interface {
	LastRun() *scheduler.RunResult
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        Pinger
	counters  map[string]Counter
	notifier  NotifierStatus
	syncs     LastRunReporter
	logger    *logger.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. counters are reported by
// name under "store". notifier may be nil when WhatsApp notices are disabled.
func NewHealthHandler(db Pinger, counters map[string]Counter, notifier NotifierStatus, syncs LastRunReporter, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		counters:  counters,
		notifier:  notifier,
		syncs:     syncs,
		logger:    log,
		startTime: time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	statusCode := http.StatusOK

	database := map[string]interface{}{"reachable": true}
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("Database ping failed", "error", err)
		database["reachable"] = false
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	store := make(map[string]interface{}, len(h.counters))
	if database["reachable"] == true {
		for name, c := range h.counters {
			n, err := c.Count(ctx)
			if err != nil {
				h.logger.Warn("Store count failed", "store", name, "error", err)
				continue
			}
			store[name] = n
		}
	}

	whatsapp := map[string]interface{}{"enabled": false}
	if h.notifier != nil {
		whatsapp = h.notifier.ConnectionStatus()
	}

	response := map[string]interface{}{
		"status":    status,
		"database":  database,
		"store":     store,
		"whatsapp":  whatsapp,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if last := h.syncs.LastRun(); last != nil {
		response["last_sync"] = last
	}

	writeJSON(w, statusCode, response)
}
