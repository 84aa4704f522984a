package handlers

import (
	"net/http"

	"github.com/brightclass/cbt-service/internal/services"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *utils.Validator
}

type StartSessionRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

func NewSessionHandler(
	sessionService services.SessionService,
	validator *utils.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// StartSession opens a timed session for the exam and returns the question
// list. The answer key never appears in the response.
// @Router /cbt/exams/{exam_id}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	examID := ParseStringIDParam(c, "exam_id")
	if examID == "" {
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Starting CBT session", "exam_id", examID, "student_id", req.StudentID)

	resp, err := h.sessionService.Start(c.Request.Context(), examID, req.StudentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Session started",
		Data:    resp,
	})
}

// GetSession returns the session; an overdue session is finalized before
// the read so it is never reported active past its deadline.
// @Router /cbt/sessions/{session_id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// RecordAnswer stores one answer. Repeating the call for the same question
// overwrites the earlier choice.
// @Router /cbt/sessions/{session_id}/answer [post]
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req services.RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.RecordAnswer(c.Request.Context(), sessionID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

// Submit finalizes the session and returns the scored outcome. A duplicate
// submit returns 409 with the existing outcome in the details so retrying
// clients can recover it.
// @Router /cbt/sessions/{session_id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	h.LogRequest(c, "Submitting CBT session", "session_id", sessionID)

	outcome, err := h.sessionService.Submit(c.Request.Context(), sessionID)
	if err != nil {
		if outcome != nil {
			c.JSON(http.StatusConflict, ErrorResponse{
				Message: err.Error(),
				Details: outcome,
			})
			return
		}
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session submitted",
		Data:    outcome,
	})
}

// GetStudentResult returns the caller's scored outcome for an exam.
// @Router /cbt/results/student/{exam_id} [get]
func (h *SessionHandler) GetStudentResult(c *gin.Context) {
	examID := ParseStringIDParam(c, "exam_id")
	if examID == "" {
		return
	}

	studentID := c.Query("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid student_id",
			Details: "student_id query parameter is required",
		})
		return
	}

	outcome, err := h.sessionService.GetStudentResult(c.Request.Context(), examID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// GetClassResults returns all outcomes for an exam with the precomputed
// average and score distribution (teacher view).
// @Router /cbt/results/class/{exam_id} [get]
func (h *SessionHandler) GetClassResults(c *gin.Context) {
	examID := ParseStringIDParam(c, "exam_id")
	if examID == "" {
		return
	}

	results, err := h.sessionService.GetClassResults(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}
