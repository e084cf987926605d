package controller

import (
	"strings"

	"github.com/gin-gonic/gin"

	"clashoj/internal/submit/service"
	"clashoj/pkg/utils/response"
)

// SubmitRequest is the intake payload.
type SubmitRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ProblemID int64  `json:"problem_id" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Code      string `json:"code" binding:"required"`
	ContestID string `json:"contest_id"`
}

// SubmitResponse acknowledges intake before judging finishes.
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Verdict      string `json:"verdict"`
}

// SubmitController handles submission HTTP endpoints.
type SubmitController struct {
	submitService *service.SubmitService
}

// NewSubmitController creates a new SubmitController.
func NewSubmitController(submitService *service.SubmitService) *SubmitController {
	return &SubmitController{submitService: submitService}
}

// Create handles submission requests.
func (h *SubmitController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	submission, err := h.submitService.Submit(c.Request.Context(), service.SubmitInput{
		UserID:         req.UserID,
		ProblemID:      req.ProblemID,
		Language:       req.Language,
		Code:           req.Code,
		ContestID:      req.ContestID,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, SubmitResponse{
		SubmissionID: submission.ID,
		Verdict:      string(submission.Verdict),
	})
}

// Get returns one submission, terminal or still Pending.
func (h *SubmitController) Get(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	submission, err := h.submitService.GetSubmission(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submission)
}
