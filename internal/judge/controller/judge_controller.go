package controller

import (
	"github.com/gin-gonic/gin"

	"clashoj/internal/judge/repository"
	"clashoj/pkg/utils/response"
)

// JudgeController serves operator-facing reads on the judge worker.
type JudgeController struct {
	submissions repository.SubmissionRepository
}

// NewJudgeController creates a new controller.
func NewJudgeController(submissions repository.SubmissionRepository) *JudgeController {
	return &JudgeController{submissions: submissions}
}

// GetSubmission returns the persisted state of one submission, including
// the verdict and per-test-case results once judged.
func (h *JudgeController) GetSubmission(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	submission, err := h.submissions.GetByID(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submission)
}
