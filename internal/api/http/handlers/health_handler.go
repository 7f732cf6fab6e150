package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	deps        map[string]Pinger
	queueDepth  func() int
}

// NewHealthHandler returns a new handler instance. A nil entry in deps marks a backend
// replaced by the in-memory store; it is reported but never fails readiness.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger, queueDepth func() int) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, deps: deps, queueDepth: queueDepth}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true
	for name, dep := range h.deps {
		if dep == nil {
			depStatus[name] = "memory"
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
			continue
		}
		depStatus[name] = "ok"
	}

	body := fiber.Map{"dependencies": depStatus}
	if h.queueDepth != nil {
		body["autobid_queue_depth"] = h.queueDepth()
	}

	if ready {
		body["status"] = "ready"
		return c.JSON(body)
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": body,
		},
	})
}
