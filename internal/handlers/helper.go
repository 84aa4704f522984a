package handlers

import (
	"net/http"
	"strings"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/gin-gonic/gin"
)

// ParseStringIDParam returns the trimmed path parameter, responding with
// 400 and returning "" when it is empty.
func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// ParseTermQuery reads the term and academic_year query parameters shared
// by every grade and result listing endpoint.
func ParseTermQuery(c *gin.Context) (models.Term, string, bool) {
	term := models.Term(strings.ToLower(c.Query("term")))
	academicYear := c.Query("academic_year")

	if !term.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid term",
			Details: "term must be one of: term1, term2, final",
		})
		return "", "", false
	}
	if academicYear == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid academic_year",
			Details: "academic_year is required, formatted YYYY-YYYY",
		})
		return "", "", false
	}
	return term, academicYear, true
}
