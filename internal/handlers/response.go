package handlers

import (
  "errors"
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/wanderplan/wanderplan-backend/internal/services"
)

type APIError struct {
  Message     string	`json:"message"`
  Code	      string	`json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error	      APIError	`json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps service errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic code.
func RespondServiceError(c *gin.Context, err error) {
  var rateErr *services.RateLimitedError
  var deltaErr *services.DeltaValidationError
  var chainErr *services.AllProvidersFailedError
  switch {
  case errors.Is(err, services.ErrRunNotFound):
    RespondError(c, http.StatusNotFound, "run_not_found", err)
  case errors.Is(err, services.ErrPlanNotFound):
    RespondError(c, http.StatusNotFound, "plan_not_found", err)
  case errors.As(err, &deltaErr):
    RespondError(c, http.StatusBadRequest, "invalid_delta", err)
  case errors.As(err, &rateErr):
    c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
    RespondError(c, http.StatusTooManyRequests, "rate_limited", err)
  case errors.As(err, &chainErr):
    RespondError(c, http.StatusBadGateway, "providers_unavailable", err)
  default:
    RespondError(c, http.StatusInternalServerError, "internal_error", err)
  }
}
