package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/services"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

type PlanEditHandler struct {
  edit services.PlanEditService
}

func NewPlanEditHandler(edit services.PlanEditService) *PlanEditHandler {
  return &PlanEditHandler{edit: edit}
}

// POST /api/plans/:id/delta
func (h *PlanEditHandler) ApplyDelta(c *gin.Context) {
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid plan id"))
    return
  }
  var delta types.PlanDelta
  if err := c.ShouldBindJSON(&delta); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  plan, err := h.edit.ApplyDelta(c.Request.Context(), planID, delta)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"plan": plan})
}

// POST /api/plans/:id/regenerate
func (h *PlanEditHandler) Regenerate(c *gin.Context) {
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid plan id"))
    return
  }
  run, err := h.edit.Regenerate(c.Request.Context(), planID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"run": run})
}
