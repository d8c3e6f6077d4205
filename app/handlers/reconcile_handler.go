package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/chat-sequencer/app/dto"
	businessflow "github.com/amirphl/chat-sequencer/business_flow"
	"github.com/amirphl/chat-sequencer/models"
)

// ReconcileHandler triggers an on-demand reconciliation pass
type ReconcileHandler struct {
	baseHandler
	flow businessflow.ReconciliationFlow
}

func NewReconcileHandler(flow businessflow.ReconciliationFlow) *ReconcileHandler {
	return &ReconcileHandler{flow: flow}
}

// Reconcile runs one pass for chats, messages or all families
// @Summary Reconcile Counters
// @Description Write the counters of dirty parents to the relational store
// @Tags Internal
// @Produce json
// @Param family path string true "Family" Enums(chats, messages, all)
// @Success 200 {object} dto.APIResponse{data=dto.ReconcileResponse} "Reconciliation completed"
// @Failure 400 {object} dto.APIResponse "Unknown family"
// @Failure 401 {object} dto.APIResponse "Unauthorized - missing or invalid token"
// @Failure 500 {object} dto.APIResponse "Reconciliation finished with errors"
// @Router /internal/reconcile/{family} [post]
func (h *ReconcileHandler) Reconcile(c fiber.Ctx) error {
	family := c.Params("family")

	ctx, cancel := h.createRequestContext(c, "/internal/reconcile/:family")
	defer cancel()

	if family == "all" {
		results, err := h.flow.ReconcileAll(ctx)
		resp := dto.ReconcileResponse{Family: family, Families: make(map[string]int, len(results))}
		for f, n := range results {
			resp.Families[string(f)] = n
			resp.Processed += n
		}
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Reconciliation finished with errors", "RECONCILE_FAILED", resp)
		}
		return h.SuccessResponse(c, fiber.StatusOK, "Reconciliation completed", resp)
	}

	parsed, err := models.ParseFamily(family)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown family", "INVALID_FAMILY", err.Error())
	}

	processed, err := h.flow.Reconcile(ctx, parsed)
	if err != nil {
		return h.flowError(c, err, "Reconciliation failed", "RECONCILE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reconciliation completed", dto.ReconcileResponse{Family: family, Processed: processed})
}
