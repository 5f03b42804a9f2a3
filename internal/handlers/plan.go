package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/services"
)

type PlanHandler struct {
  edit services.PlanEditService
}

func NewPlanHandler(edit services.PlanEditService) *PlanHandler {
  return &PlanHandler{edit: edit}
}

// GET /api/plans/:id
func (h *PlanHandler) GetByID(c *gin.Context) {
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid plan id"))
    return
  }
  plan, err := h.edit.GetPlan(c.Request.Context(), planID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"plan": plan})
}
