package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/requestdata"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/services"
)

type ProgressHandler struct {
  log         *logger.Logger
  progressSvc services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progressSvc services.ProgressService) *ProgressHandler {
  return &ProgressHandler{
    log:         log.With("handler", "ProgressHandler"),
    progressSvc: progressSvc,
  }
}

type updateProgressRequest struct {
  Status string `json:"status" binding:"required"`
}

// PUT /api/roadmaps/:id/steps/:conceptID/progress
func (h *ProgressHandler) UpdateStepProgress(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  roadmapID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_roadmap_id", err)
    return
  }
  conceptID, err := uuid.Parse(c.Param("conceptID"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
    return
  }

  var req updateProgressRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }

  row, err := h.progressSvc.UpdateStepProgress(c.Request.Context(), rd.UserID, roadmapID, conceptID, req.Status)
  if err != nil {
    RespondServiceError(c, "update_progress_failed", err)
    return
  }
  RespondOK(c, gin.H{"progress": row})
}

// GET /api/me/roadmaps
func (h *ProgressHandler) ListUserRoadmaps(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }

  roadmaps, err := h.progressSvc.GetUserRoadmaps(c.Request.Context(), rd.UserID)
  if err != nil {
    h.log.Error("ListUserRoadmaps failed", "error", err, "user_id", rd.UserID)
    RespondServiceError(c, "load_roadmaps_failed", err)
    return
  }
  RespondOK(c, gin.H{"roadmaps": roadmaps})
}

// GET /api/me/roadmaps/:id
func (h *ProgressHandler) GetUserRoadmap(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  roadmapID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_roadmap_id", err)
    return
  }

  roadmap, err := h.progressSvc.GetUserRoadmapByID(c.Request.Context(), rd.UserID, roadmapID)
  if err != nil {
    RespondServiceError(c, "load_roadmap_failed", err)
    return
  }
  RespondOK(c, gin.H{"roadmap": roadmap})
}
