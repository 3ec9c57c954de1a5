package research

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/research_backend/models"
	"github.com/mmdatafocus/research_backend/utils"
)

// A1-notation range with a sheet name, e.g. 会社リスト!A3:D.
var sheetRangeRe = regexp.MustCompile(`^[^!]+![A-Za-z]+[0-9]*(:[A-Za-z]+[0-9]*)?$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("sheetrange", func(fl validator.FieldLevel) bool {
			return sheetRangeRe.MatchString(fl.Field().String())
		})
	}
}

// StartRunRequest is the POST /research/runs body. All fields are optional;
// the run falls back to the configured source range and no company cap.
type StartRunRequest struct {
	SourceRange  string `json:"source_range" binding:"omitempty,sheetrange"`
	SyncToSheet  *bool  `json:"sync_to_sheet"`
	MaxCompanies int    `json:"max_companies" binding:"omitempty,min=0"`
	Description  string `json:"description" binding:"omitempty,max=255"`
}

// StartRunHandler accepts a run request, queues it and returns 202 with the
// queued run. Processing happens on a detached goroutine; clients poll.
func StartRunHandler(runner *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartRunRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		syncToSheet := true
		if req.SyncToSheet != nil {
			syncToSheet = *req.SyncToSheet
		}

		run, err := runner.StartRun(c.Request.Context(), RunOptions{
			SourceRange:  req.SourceRange,
			SyncToSheet:  syncToSheet,
			MaxCompanies: req.MaxCompanies,
			Description:  req.Description,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, run)
	}
}

// GetRunHandler reads one run by id.
func GetRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		runId, err := strconv.Atoi(c.Param("id"))
		if err != nil || runId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, err := models.GetResearchRun(c.Request.Context(), runId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// ListRunsHandler lists recent runs, newest first.
func ListRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		runs, err := models.GetRecentResearchRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// ListCompaniesHandler lists reconciled companies, most recently updated first.
func ListCompaniesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		companies, err := models.GetCompanies(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"companies": companies})
	}
}

// GetCompanyHandler loads one company with its executives and offices.
func GetCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		corporateNumber := c.Param("corporateNumber")
		if corporateNumber == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "corporate number is required"})
			return
		}

		company, err := models.GetCompanyByNumber(c.Request.Context(), corporateNumber)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, company)
	}
}

// ListHistoryHandler lists recorded field changes for one company.
func ListHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		corporateNumber := c.Param("corporateNumber")
		if corporateNumber == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "corporate number is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		histories, err := models.GetResearchHistories(c.Request.Context(), corporateNumber, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"histories": histories})
	}
}
