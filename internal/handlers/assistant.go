package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/services"
)

type AssistantHandler struct {
  assistant services.AssistantService
}

func NewAssistantHandler(assistant services.AssistantService) *AssistantHandler {
  return &AssistantHandler{assistant: assistant}
}

type assistantEditRequest struct {
  Instruction string `json:"instruction" binding:"required"`
  Escalate    bool   `json:"escalate"`
}

// POST /api/plans/:id/assistant
func (h *AssistantHandler) EditPlan(c *gin.Context) {
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid plan id"))
    return
  }
  var req assistantEditRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  plan, err := h.assistant.EditPlan(c.Request.Context(), planID, req.Instruction, req.Escalate)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"plan": plan})
}
