package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/requestdata"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/services"
)

type ResourceHandler struct {
  log         *logger.Logger
  resourceSvc services.ResourceDiscoveryService
}

func NewResourceHandler(log *logger.Logger, resourceSvc services.ResourceDiscoveryService) *ResourceHandler {
  return &ResourceHandler{
    log:         log.With("handler", "ResourceHandler"),
    resourceSvc: resourceSvc,
  }
}

type refreshResourcesRequest struct {
  // Empty means full refresh across every step of the roadmap.
  ConceptIDs []uuid.UUID `json:"concept_ids,omitempty"`
}

// POST /api/roadmaps/:id/resources/refresh
func (h *ResourceHandler) RefreshResources(c *gin.Context) {
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

  var req refreshResourcesRequest
  if c.Request.ContentLength > 0 {
    if err := c.ShouldBindJSON(&req); err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_body", err)
      return
    }
  }

  resources, err := h.resourceSvc.RefreshResources(c.Request.Context(), rd.UserID, roadmapID, req.ConceptIDs)
  if err != nil {
    h.log.Error("RefreshResources failed", "error", err, "roadmap_id", roadmapID)
    RespondServiceError(c, "refresh_resources_failed", err)
    return
  }
  RespondOK(c, gin.H{"resources": resources})
}

// GET /api/roadmaps/:id/resources
func (h *ResourceHandler) GetByRoadmap(c *gin.Context) {
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

  resources, err := h.resourceSvc.GetByRoadmap(c.Request.Context(), rd.UserID, roadmapID)
  if err != nil {
    RespondServiceError(c, "load_resources_failed", err)
    return
  }
  RespondOK(c, gin.H{"resources": resources})
}
