package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/chat-sequencer/app/dto"
)

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	baseHandler
	version     string
	environment string
	checks      map[string]HealthCheck
	timeout     time.Duration
}

func NewHealthHandler(version, environment string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		version:     version,
		environment: environment,
		checks:      checks,
		timeout:     2 * time.Second,
	}
}

// Health reports 503 when any dependency fails its ping
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse} "Service healthy"
// @Failure 503 {object} dto.APIResponse{data=dto.HealthResponse} "A dependency is down"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:      "ok",
		Version:     h.version,
		Environment: h.environment,
		Checks:      make(map[string]string, len(h.checks)),
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    resp,
		})
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", resp)
}
