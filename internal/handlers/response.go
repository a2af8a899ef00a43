package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/services"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
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

// RespondServiceError maps the services package sentinels to HTTP statuses
// so handlers don't each re-implement the mapping.
func RespondServiceError(c *gin.Context, code string, err error) {
  switch {
  case services.IsNotFound(err):
    RespondError(c, http.StatusNotFound, code, err)
  case services.IsValidation(err):
    RespondError(c, http.StatusBadRequest, code, err)
  case services.IsGeneration(err):
    RespondError(c, http.StatusBadGateway, code, err)
  default:
    RespondError(c, http.StatusInternalServerError, code, err)
  }
}
