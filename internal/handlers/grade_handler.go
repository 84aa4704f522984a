package handlers

import (
	"net/http"
	"strings"

	"github.com/brightclass/cbt-service/internal/services"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type GradeHandler struct {
	BaseHandler
	gradeService  services.GradeService
	importService services.ImportExportService
	validator     *utils.Validator
}

func NewGradeHandler(
	gradeService services.GradeService,
	importService services.ImportExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *GradeHandler {
	return &GradeHandler{
		BaseHandler:   NewBaseHandler(logger),
		gradeService:  gradeService,
		importService: importService,
		validator:     validator,
	}
}

// UploadGrade upserts a single grade record. Set "override" to correct a
// grade whose term result is already published.
// @Router /grades/upload [post]
func (h *GradeHandler) UploadGrade(c *gin.Context) {
	var req services.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Uploading grade",
		"student_id", req.StudentID,
		"subject_id", req.SubjectID,
		"term", req.Term)

	record, err := h.gradeService.Upsert(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Grade uploaded",
		Data:    record,
	})
}

// BulkUploadGrades accepts either a JSON array of grade records or a
// multipart spreadsheet (.csv or .xlsx) under the "file" field. Bad rows
// are reported per row; good rows land regardless.
// @Router /grades/bulk-upload [post]
func (h *GradeHandler) BulkUploadGrades(c *gin.Context) {
	teacherID := c.Query("teacher_id")

	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.bulkUploadFile(c, teacherID)
		return
	}

	var reqs []services.UpsertGradeRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Bulk uploading grades", "count", len(reqs))

	result := &services.ImportResult{TotalRows: len(reqs)}
	for i := range reqs {
		record, err := h.gradeService.Upsert(c.Request.Context(), &reqs[i])
		result.ProcessedRows++
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, services.ImportRowError{
				Row:     i + 1,
				Column:  "student_id",
				Message: err.Error(),
				Value:   reqs[i].StudentID,
			})
			continue
		}
		result.SuccessCount++
		result.Records = append(result.Records, record)
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Bulk upload processed",
		Data:    result,
	})
}

func (h *GradeHandler) bulkUploadFile(c *gin.Context, teacherID string) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid file upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Bulk uploading grade file", "filename", header.Filename, "teacher_id", teacherID)

	result, err := h.importService.ImportGradesFromFile(c.Request.Context(), file, header.Filename, teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Bulk upload processed",
		Data:    result,
	})
}

// ListStudentGrades returns a student's grade records for one term.
// @Router /grades/student/{student_id} [get]
func (h *GradeHandler) ListStudentGrades(c *gin.Context) {
	studentID := ParseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}
	term, academicYear, ok := ParseTermQuery(c)
	if !ok {
		return
	}

	records, err := h.gradeService.ListStudentGrades(c.Request.Context(), studentID, term, academicYear)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// ListClassGrades returns every grade record in a class for one term.
// @Router /grades/class/{class_id} [get]
func (h *GradeHandler) ListClassGrades(c *gin.Context) {
	classID := ParseStringIDParam(c, "class_id")
	if classID == "" {
		return
	}
	term, academicYear, ok := ParseTermQuery(c)
	if !ok {
		return
	}

	records, err := h.gradeService.ListClassGrades(c.Request.Context(), classID, term, academicYear)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// ExportClassGrades downloads a class's grades for one term as CSV.
// @Router /grades/class/{class_id}/export [get]
func (h *GradeHandler) ExportClassGrades(c *gin.Context) {
	classID := ParseStringIDParam(c, "class_id")
	if classID == "" {
		return
	}
	term, academicYear, ok := ParseTermQuery(c)
	if !ok {
		return
	}

	data, err := h.importService.ExportClassGradesToCSV(c.Request.Context(), classID, term, academicYear)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := "grades_" + classID + "_" + string(term) + "_" + academicYear + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}
