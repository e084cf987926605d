package model

// Difficulty buckets for per-user solved counters.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// TestCase is one (input, expected output) pair. Explanation is only
// populated on sample cases and never used for judging.
type TestCase struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Problem is the read-only problem view the judge needs: test cases plus
// the configured limits. The effective judged list is sample ++ hidden,
// order preserved.
type Problem struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Difficulty       string     `json:"difficulty"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	MemoryLimitMb    int        `json:"memory_limit_mb"`
	SampleTestCases  []TestCase `json:"sample_test_cases"`
	HiddenTestCases  []TestCase `json:"hidden_test_cases"`
}

// EffectiveTestCases returns the ordered list judged against.
func (p *Problem) EffectiveTestCases() []TestCase {
	cases := make([]TestCase, 0, len(p.SampleTestCases)+len(p.HiddenTestCases))
	cases = append(cases, p.SampleTestCases...)
	cases = append(cases, p.HiddenTestCases...)
	return cases
}

// User carries the solved-problem stats the judge updates on Accepted.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	EasySolved   int    `json:"easy_solved"`
	MediumSolved int    `json:"medium_solved"`
	HardSolved   int    `json:"hard_solved"`
}
