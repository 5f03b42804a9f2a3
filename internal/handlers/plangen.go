package handlers

import (
  "fmt"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/services"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

type PlanGenHandler struct {
  gen    services.PlanGenerationService
  status services.GenerationStatusService
}

func NewPlanGenHandler(gen services.PlanGenerationService, status services.GenerationStatusService) *PlanGenHandler {
  return &PlanGenHandler{gen: gen, status: status}
}

type generatePlanRequest struct {
  Destination   string  `json:"destination" binding:"required"`
  StartDate     string  `json:"start_date" binding:"required"`
  EndDate       string  `json:"end_date" binding:"required"`
  Travelers     int     `json:"travelers"`
  Budget        float64 `json:"budget"`
  Preferences   string  `json:"preferences"`
  TripType      string  `json:"trip_type"`
  TransportMode string  `json:"transport_mode"`
  DepartureFrom string  `json:"departure_from"`
}

func (r generatePlanRequest) toTrip() (types.TripRequest, error) {
  start, err := time.Parse("2006-01-02", r.StartDate)
  if err != nil {
    return types.TripRequest{}, fmt.Errorf("invalid start_date, expected YYYY-MM-DD")
  }
  end, err := time.Parse("2006-01-02", r.EndDate)
  if err != nil {
    return types.TripRequest{}, fmt.Errorf("invalid end_date, expected YYYY-MM-DD")
  }
  travelers := r.Travelers
  if travelers < 1 {
    travelers = 1
  }
  return types.TripRequest{
    Destination:   r.Destination,
    StartDate:     start,
    EndDate:       end,
    Travelers:     travelers,
    Budget:        r.Budget,
    Preferences:   r.Preferences,
    TripType:      r.TripType,
    TransportMode: r.TransportMode,
    DepartureFrom: r.DepartureFrom,
  }, nil
}

// POST /api/plans/generate
func (h *PlanGenHandler) Generate(c *gin.Context) {
  var req generatePlanRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  trip, err := req.toTrip()
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  run, err := h.gen.Enqueue(c.Request.Context(), trip, requesterFrom(c))
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /api/generation/:id
func (h *PlanGenHandler) GetStatus(c *gin.Context) {
  runID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid run id"))
    return
  }
  run, err := h.status.GetStatus(c.Request.Context(), runID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"run": run})
}

// GET /api/generation
func (h *PlanGenHandler) ListRecent(c *gin.Context) {
  limit := 20
  runs, err := h.status.ListRecent(c.Request.Context(), requesterFrom(c), limit)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"runs": runs})
}

func requesterFrom(c *gin.Context) types.Requester {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    return types.Requester{}
  }
  return types.Requester{UserID: rd.UserID, AnonID: rd.AnonID}
}
