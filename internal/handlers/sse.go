package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
)

type SSEHandler struct {
  log *logger.Logger
  hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
  return &SSEHandler{log: log.With("handler", "SSEHandler"), hub: hub}
}

// GET /api/stream?job=<id>&plan=<id>
//
// The client is always subscribed to its own requester channel; job and plan
// query params add per-resource channels so a page can watch one generation
// or one plan without receiving everything the requester owns.
func (h *SSEHandler) Stream(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || (rd.UserID == uuid.Nil && rd.AnonID == "") {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
    return
  }

  client := h.hub.NewSSEClient()

  var requesterChannel string
  if rd.UserID != uuid.Nil {
    requesterChannel = rd.UserID.String()
  } else {
    requesterChannel = "anon:" + rd.AnonID
  }
  h.hub.AddChannel(client, requesterChannel)

  if jobParam := c.Query("job"); jobParam != "" {
    if jobID, err := uuid.Parse(jobParam); err == nil {
      h.hub.AddChannel(client, jobID.String())
    }
  }
  if planParam := c.Query("plan"); planParam != "" {
    if planID, err := uuid.Parse(planParam); err == nil {
      h.hub.AddChannel(client, planID.String())
    }
  }

  h.log.Debug("SSE stream open", "client_id", client.ID, "channel", requesterChannel)
  h.hub.ServeHTTP(c.Writer, c.Request, client)
  h.hub.CloseClient(client)
}
