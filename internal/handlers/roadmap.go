package handlers

import (
  "net/http"
  "strconv"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/requestdata"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/services"
)

type RoadmapHandler struct {
  log        *logger.Logger
  roadmapSvc services.RoadmapService
  genSvc     services.RoadmapGenerationService
}

func NewRoadmapHandler(log *logger.Logger, roadmapSvc services.RoadmapService, genSvc services.RoadmapGenerationService) *RoadmapHandler {
  return &RoadmapHandler{
    log:        log.With("handler", "RoadmapHandler"),
    roadmapSvc: roadmapSvc,
    genSvc:     genSvc,
  }
}

type createRoadmapRequest struct {
  Topic       string                `json:"topic" binding:"required"`
  UserContext *services.UserContext `json:"user_context,omitempty"`
  DocumentID  *uuid.UUID            `json:"document_id,omitempty"`
}

// POST /api/roadmaps
func (h *RoadmapHandler) Create(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }

  var req createRoadmapRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }

  roadmap, run, err := h.genSvc.EnqueueFromTopic(c.Request.Context(), rd.UserID, req.Topic, req.UserContext, req.DocumentID)
  if err != nil {
    h.log.Error("Create roadmap failed", "error", err, "user_id", rd.UserID)
    RespondServiceError(c, "create_roadmap_failed", err)
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"roadmap": roadmap, "run": run})
}

// POST /api/roadmaps/:id/generate
func (h *RoadmapHandler) Regenerate(c *gin.Context) {
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

  run, err := h.genSvc.Enqueue(c.Request.Context(), rd.UserID, roadmapID)
  if err != nil {
    h.log.Error("Regenerate roadmap failed", "error", err, "roadmap_id", roadmapID)
    RespondServiceError(c, "enqueue_failed", err)
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /api/roadmaps/:id
func (h *RoadmapHandler) GetByID(c *gin.Context) {
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

  roadmap, err := h.roadmapSvc.GetByID(c.Request.Context(), rd.UserID, roadmapID)
  if err != nil {
    RespondServiceError(c, "load_roadmap_failed", err)
    return
  }
  RespondOK(c, gin.H{"roadmap": roadmap})
}

// GET /api/documents/:id/roadmap
func (h *RoadmapHandler) GetByDocumentID(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  documentID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
    return
  }

  roadmap, err := h.roadmapSvc.GetByDocumentID(c.Request.Context(), rd.UserID, documentID)
  if err != nil {
    RespondServiceError(c, "load_roadmap_failed", err)
    return
  }
  RespondOK(c, gin.H{"roadmap": roadmap})
}

type expandStepRequest struct {
  UserContext *services.UserContext `json:"user_context,omitempty"`
}

// POST /api/roadmaps/:id/steps/:conceptID/expand
func (h *RoadmapHandler) ExpandStep(c *gin.Context) {
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

  var req expandStepRequest
  if c.Request.ContentLength > 0 {
    if err := c.ShouldBindJSON(&req); err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_body", err)
      return
    }
  }

  steps, err := h.roadmapSvc.ExpandStep(c.Request.Context(), rd.UserID, roadmapID, conceptID, req.UserContext)
  if err != nil {
    h.log.Error("ExpandStep failed", "error", err, "roadmap_id", roadmapID, "concept_id", conceptID)
    RespondServiceError(c, "expand_step_failed", err)
    return
  }
  RespondOK(c, gin.H{"steps": steps})
}

// GET /api/roadmaps/:id/suggested-concepts
func (h *RoadmapHandler) SuggestConcepts(c *gin.Context) {
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
  limit := 10
  if raw := c.Query("limit"); raw != "" {
    parsed, err := strconv.Atoi(raw)
    if err != nil || parsed < 1 {
      RespondError(c, http.StatusBadRequest, "invalid_limit", err)
      return
    }
    limit = parsed
  }

  suggestions, err := h.roadmapSvc.SuggestConcepts(c.Request.Context(), rd.UserID, roadmapID, limit)
  if err != nil {
    RespondServiceError(c, "suggest_concepts_failed", err)
    return
  }
  RespondOK(c, gin.H{"suggestions": suggestions})
}

// GET /api/admin/roadmaps/stalled
func (h *RoadmapHandler) Stalled(c *gin.Context) {
  maxAge := 30 * time.Minute
  if raw := c.Query("max_age"); raw != "" {
    parsed, err := time.ParseDuration(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_max_age", err)
      return
    }
    maxAge = parsed
  }

  roadmaps, err := h.roadmapSvc.StalledRoadmaps(c.Request.Context(), maxAge)
  if err != nil {
    RespondServiceError(c, "load_stalled_failed", err)
    return
  }
  RespondOK(c, gin.H{"roadmaps": roadmaps})
}
