package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/requestdata"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/services"
)

type QuizHandler struct {
  log     *logger.Logger
  quizSvc services.StepQuizService
}

func NewQuizHandler(log *logger.Logger, quizSvc services.StepQuizService) *QuizHandler {
  return &QuizHandler{
    log:     log.With("handler", "QuizHandler"),
    quizSvc: quizSvc,
  }
}

type generateQuizRequest struct {
  Count int `json:"count,omitempty"`
}

// POST /api/roadmaps/:id/steps/:conceptID/quiz
func (h *QuizHandler) GenerateStepQuiz(c *gin.Context) {
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

  var req generateQuizRequest
  if c.Request.ContentLength > 0 {
    if err := c.ShouldBindJSON(&req); err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_body", err)
      return
    }
  }

  quiz, err := h.quizSvc.GenerateStepQuiz(c.Request.Context(), rd.UserID, roadmapID, conceptID, req.Count)
  if err != nil {
    h.log.Error("GenerateStepQuiz failed", "error", err, "roadmap_id", roadmapID, "concept_id", conceptID)
    RespondServiceError(c, "generate_quiz_failed", err)
    return
  }
  RespondOK(c, gin.H{"quiz": quiz})
}

type submitAnswersRequest struct {
  Answers []int `json:"answers" binding:"required"`
}

// POST /api/quiz-attempts/:id/answers
func (h *QuizHandler) SubmitAnswers(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  attemptID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_attempt_id", err)
    return
  }

  var req submitAnswersRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }

  result, err := h.quizSvc.SubmitAnswers(c.Request.Context(), rd.UserID, attemptID, req.Answers)
  if err != nil {
    RespondServiceError(c, "submit_answers_failed", err)
    return
  }
  RespondOK(c, gin.H{"result": result})
}
