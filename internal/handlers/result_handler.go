package handlers

import (
	"net/http"

	"github.com/brightclass/cbt-service/internal/services"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ResultHandler struct {
	BaseHandler
	resultService services.ResultService
	importService services.ImportExportService
	validator     *utils.Validator
}

func NewResultHandler(
	resultService services.ResultService,
	importService services.ImportExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *ResultHandler {
	return &ResultHandler{
		BaseHandler:   NewBaseHandler(logger),
		resultService: resultService,
		importService: importService,
		validator:     validator,
	}
}

// AggregateAndPublish recomputes the term result from the current grade
// records and, when "publish" is set, seals it in the same transaction.
// @Router /term-results/publish [post]
func (h *ResultHandler) AggregateAndPublish(c *gin.Context) {
	var req services.AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Aggregating term result",
		"student_id", req.StudentID,
		"term", req.Term,
		"academic_year", req.AcademicYear,
		"publish", req.Publish)

	result, err := h.resultService.Aggregate(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Term result aggregated",
		Data:    result,
	})
}

// Publish seals an already aggregated term result.
// @Router /term-results/{id}/publish [post]
func (h *ResultHandler) Publish(c *gin.Context) {
	resultID := ParseStringIDParam(c, "id")
	if resultID == "" {
		return
	}

	h.LogRequest(c, "Publishing term result", "term_result_id", resultID)

	result, err := h.resultService.Publish(c.Request.Context(), resultID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Term result published",
		Data:    result,
	})
}

// Unpublish reopens a sealed term result for correction (admin path).
// @Router /term-results/{id}/unpublish [post]
func (h *ResultHandler) Unpublish(c *gin.Context) {
	resultID := ParseStringIDParam(c, "id")
	if resultID == "" {
		return
	}

	h.LogRequest(c, "Unpublishing term result", "term_result_id", resultID)

	result, err := h.resultService.Unpublish(c.Request.Context(), resultID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Term result unpublished",
		Data:    result,
	})
}

// GetResult returns one term result by id.
// @Router /term-results/{id} [get]
func (h *ResultHandler) GetResult(c *gin.Context) {
	resultID := ParseStringIDParam(c, "id")
	if resultID == "" {
		return
	}

	result, err := h.resultService.GetResult(c.Request.Context(), resultID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListStudentResults returns a student's term results. Student-facing
// callers pass published_only=true; drafts stay teacher-side.
// @Router /term-results/student/{student_id} [get]
func (h *ResultHandler) ListStudentResults(c *gin.Context) {
	studentID := ParseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}

	publishedOnly := c.Query("published_only") == "true"

	results, err := h.resultService.ListStudentResults(c.Request.Context(), studentID, publishedOnly)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ListClassResults returns the term results of every student in a class.
// @Router /term-results/class/{class_id} [get]
func (h *ResultHandler) ListClassResults(c *gin.Context) {
	classID := ParseStringIDParam(c, "class_id")
	if classID == "" {
		return
	}
	term, academicYear, ok := ParseTermQuery(c)
	if !ok {
		return
	}

	results, err := h.resultService.ListClassResults(c.Request.Context(), classID, term, academicYear)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ExportClassResults downloads a class's term results as a workbook.
// @Router /term-results/class/{class_id}/export [get]
func (h *ResultHandler) ExportClassResults(c *gin.Context) {
	classID := ParseStringIDParam(c, "class_id")
	if classID == "" {
		return
	}
	term, academicYear, ok := ParseTermQuery(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting class term results", "class_id", classID, "term", term)

	data, err := h.importService.ExportClassResultsToExcel(c.Request.Context(), classID, term, academicYear)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := "term_results_" + classID + "_" + string(term) + "_" + academicYear + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
