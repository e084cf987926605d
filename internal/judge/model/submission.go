package model

import "time"

// Verdict is the terminal classification of a judged submission.
// Pending is the sole non-terminal state, set at submission creation.
type Verdict string

const (
	VerdictPending             Verdict = "Pending"
	VerdictAccepted            Verdict = "Accepted"
	VerdictWrongAnswer         Verdict = "Wrong Answer"
	VerdictTimeLimitExceeded   Verdict = "Time Limit Exceeded"
	VerdictMemoryLimitExceeded Verdict = "Memory Limit Exceeded"
	VerdictRuntimeError        Verdict = "Runtime Error"
	VerdictCompilationError    Verdict = "Compilation Error"
)

// Terminal reports whether v is a final verdict. Only Pending is non-terminal,
// and a submission never transitions back to it.
func (v Verdict) Terminal() bool {
	return v != VerdictPending && v != ""
}

// TestCaseStatus classifies a single test case outcome.
type TestCaseStatus string

const (
	TestCasePassed TestCaseStatus = "Passed"
	TestCaseFailed TestCaseStatus = "Failed"
	TestCaseError  TestCaseStatus = "Error"
)

// Submission is a judged unit of user code. Created in Pending, mutated
// exactly once to a terminal verdict by the judge engine.
type Submission struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	ProblemID       int64            `json:"problem_id"`
	Code            string           `json:"code"`
	Language        string           `json:"language"`
	Verdict         Verdict          `json:"verdict"`
	ExecutionTimeMs *int64           `json:"execution_time_ms"`
	MemoryUsedKb    *int64           `json:"memory_used_kb"`
	PassedTestCases int              `json:"passed_test_cases"`
	TotalTestCases  int              `json:"total_test_cases"`
	Output          string           `json:"output"`
	Error           string           `json:"error,omitempty"`
	TestCaseResults []TestCaseResult `json:"test_case_results"`
	SourceKey       string           `json:"source_key,omitempty"`
	SourceHash      string           `json:"source_hash,omitempty"`
	ContestID       string           `json:"contest_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TestCaseResult records one test case execution. Index is 1-based and
// follows the problem's sample++hidden ordering. Immutable once attached.
type TestCaseResult struct {
	Index           int            `json:"index"`
	Input           string         `json:"input"`
	ExpectedOutput  string         `json:"expected_output"`
	ActualOutput    string         `json:"actual_output"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	MemoryKb        *int64         `json:"memory_kb"`
	Status          TestCaseStatus `json:"status"`
	Error           string         `json:"error,omitempty"`
}

// JudgeResult is the aggregate returned to callers of the engine.
type JudgeResult struct {
	SubmissionID    string           `json:"submission_id"`
	Verdict         Verdict          `json:"verdict"`
	ExecutionTimeMs *int64           `json:"execution_time_ms"`
	MemoryUsedKb    *int64           `json:"memory_used_kb"`
	PassedTestCases int              `json:"passed_test_cases"`
	TotalTestCases  int              `json:"total_test_cases"`
	Output          string           `json:"output"`
	Error           string           `json:"error,omitempty"`
	TestCaseResults []TestCaseResult `json:"test_case_results"`
}
