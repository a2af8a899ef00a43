package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/requestdata"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/sse"
)

type SSEHandler struct {
  log *logger.Logger
  hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
  return &SSEHandler{
    log: log.With("handler", "SSEHandler"),
    hub: hub,
  }
}

// GET /sse/stream
//
// Every connection is subscribed to the user's own channel; roadmap
// generation, expansion and resource events are published there.
func (h *SSEHandler) SSEStream(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  userID := rd.UserID
  h.log.Info("SSEStream open", "user_id", userID.String())

  client := h.hub.NewSSEClient(userID)
  h.hub.AddChannel(client, userID.String())

  h.hub.ServeHTTP(c.Writer, c.Request, client)

  h.hub.CloseClient(client)
}
