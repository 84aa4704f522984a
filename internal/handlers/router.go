package handlers

import (
	"net/http"

	"github.com/brightclass/cbt-service/internal/services"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	gradeHandler   *GradeHandler
	resultHandler  *ResultHandler
}

func NewHandlerManager(
	sessionService services.SessionService,
	gradeService services.GradeService,
	resultService services.ResultService,
	importService services.ImportExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessionService, validator, logger),
		gradeHandler:   NewGradeHandler(gradeService, importService, validator, logger),
		resultHandler:  NewResultHandler(resultService, importService, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "cbt-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		cbt := v1.Group("/cbt")
		{
			cbt.POST("/exams/:exam_id/start", hm.sessionHandler.StartSession)
			cbt.GET("/sessions/:session_id", hm.sessionHandler.GetSession)
			cbt.POST("/sessions/:session_id/answer", hm.sessionHandler.RecordAnswer)
			cbt.POST("/sessions/:session_id/submit", hm.sessionHandler.Submit)
			cbt.GET("/results/student/:exam_id", hm.sessionHandler.GetStudentResult)
			cbt.GET("/results/class/:exam_id", hm.sessionHandler.GetClassResults)
		}

		grades := v1.Group("/grades")
		{
			grades.POST("/upload", hm.gradeHandler.UploadGrade)
			grades.POST("/bulk-upload", hm.gradeHandler.BulkUploadGrades)
			grades.GET("/student/:student_id", hm.gradeHandler.ListStudentGrades)
			grades.GET("/class/:class_id", hm.gradeHandler.ListClassGrades)
			grades.GET("/class/:class_id/export", hm.gradeHandler.ExportClassGrades)
		}

		results := v1.Group("/term-results")
		{
			results.POST("/publish", hm.resultHandler.AggregateAndPublish)
			results.GET("/:id", hm.resultHandler.GetResult)
			results.POST("/:id/publish", hm.resultHandler.Publish)
			results.POST("/:id/unpublish", hm.resultHandler.Unpublish)
			results.GET("/student/:student_id", hm.resultHandler.ListStudentResults)
			results.GET("/class/:class_id", hm.resultHandler.ListClassResults)
			results.GET("/class/:class_id/export", hm.resultHandler.ExportClassResults)
		}
	}
}
