// Package engine orchestrates one judge run: it resolves the submission
// and problem, executes every test case through the sandbox, folds the
// outcomes into a single terminal verdict, and persists the result with
// its side effects.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"go.uber.org/zap"

	"clashoj/internal/common/cache"
	"clashoj/internal/common/storage"
	"clashoj/internal/judge/language"
	"clashoj/internal/judge/model"
	"clashoj/internal/judge/repository"
	"clashoj/internal/judge/sandbox"
	"clashoj/pkg/errors"
	"clashoj/pkg/utils/logger"
)

const maxArchivedSourceBytes = 1 << 20

// Executor is the slice of the sandbox runner the engine needs.
// *sandbox.Runner satisfies it.
type Executor interface {
	NewWorkspace() (*sandbox.Workspace, error)
	Compile(ctx context.Context, spec sandbox.CompileSpec) sandbox.Outcome
	Execute(ctx context.Context, spec sandbox.ExecSpec) sandbox.Outcome
}

// Config holds engine settings.
type Config struct {
	// SourceBucket is the object storage bucket holding archived sources.
	SourceBucket string `yaml:"sourceBucket"`
	// TestTimeoutMs is the per-test-case wall deadline.
	TestTimeoutMs int64 `yaml:"testTimeoutMs"`
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.TestTimeoutMs <= 0 {
		c.TestTimeoutMs = 5000
	}
}

// Deps bundles the engine's collaborators. Storage may be nil, in which
// case the inline source text is always used.
type Deps struct {
	Runner      Executor
	Submissions repository.SubmissionRepository
	Problems    repository.ProblemRepository
	Users       repository.UserStatsRepository
	Cache       cache.Cache
	Storage     storage.ObjectStorage
}

// Engine judges submissions.
type Engine struct {
	cfg  Config
	deps Deps
}

// New creates a judge engine.
func New(cfg Config, deps Deps) *Engine {
	cfg.SetDefaults()
	return &Engine{cfg: cfg, deps: deps}
}

// Judge runs one submission to a terminal verdict and persists it.
// Execution failures inside test cases never surface as errors; only
// missing data, unsupported languages, and infrastructure problems do.
func (e *Engine) Judge(ctx context.Context, submissionID string) (*model.JudgeResult, error) {
	sub, err := e.deps.Submissions.GetForJudge(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	problem, err := e.deps.Problems.GetByID(ctx, sub.ProblemID)
	if err != nil {
		return nil, err
	}
	spec, err := language.Resolve(sub.Language)
	if err != nil {
		return nil, err
	}

	result := e.runTestCases(ctx, sub, problem, spec)

	persistAndUpdateStats := func(ctx context.Context) error {
		if err := e.deps.Submissions.SaveResult(ctx, submissionID, result); err != nil {
			return err
		}
		if result.Verdict == model.VerdictAccepted {
			if err := e.deps.Users.RecordAccepted(ctx, sub.UserID, problem.ID, problem.Difficulty); err != nil {
				return err
			}
		}
		return nil
	}
	err = cache.UpdateCached(ctx, e.deps.Cache, persistAndUpdateStats,
		repository.SubmissionCacheKey(submissionID),
		repository.UserStatsCacheKey(sub.UserID),
	)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "submission judged",
		zap.String("submission_id", submissionID),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("passed", result.PassedTestCases),
		zap.Int("total", result.TotalTestCases))
	return result, nil
}

// runTestCases executes the sequential judging loop and computes the
// verdict. It never returns an error: everything that can go wrong during
// execution is folded into the result.
func (e *Engine) runTestCases(ctx context.Context, sub *model.Submission, problem *model.Problem, spec language.Spec) *model.JudgeResult {
	cases := problem.EffectiveTestCases()
	result := &model.JudgeResult{
		SubmissionID:   sub.ID,
		TotalTestCases: len(cases),
	}

	ws, err := e.deps.Runner.NewWorkspace()
	if err != nil {
		return e.systemFailure(result, cases, "create workspace: "+err.Error())
	}
	defer ws.Cleanup()

	source := e.resolveSource(ctx, sub)
	if _, err := ws.WriteSource(spec.SourceFile, source); err != nil {
		return e.systemFailure(result, cases, "write source: "+err.Error())
	}

	// Compilation happens once per submission; the produced binary is
	// reused across test cases. A compile failure is terminal no matter
	// how many cases were still pending.
	if spec.CompileEnabled {
		compileCmd, err := spec.CompileCommand(ws.Dir)
		if err != nil {
			return e.systemFailure(result, cases, err.Error())
		}
		out := e.deps.Runner.Compile(ctx, sandbox.CompileSpec{Cmd: compileCmd, WorkDir: ws.Dir})
		if out.Failed() {
			recordAbort(result, cases, 0, out, model.VerdictCompilationError)
			return result
		}
	}

	runCmd, err := spec.RunCommand(ws.Dir)
	if err != nil {
		return e.systemFailure(result, cases, err.Error())
	}

	var totalTimeMs, totalMemoryKb int64
	executed := 0
	memoryMeasured := false
	anyFailed := false
	outputs := make([]string, 0, len(cases))

	var earlyVerdict model.Verdict
	for i, tc := range cases {
		out := e.deps.Runner.Execute(ctx, sandbox.ExecSpec{
			Cmd:       runCmd,
			Stdin:     tc.Input,
			WorkDir:   ws.Dir,
			TimeoutMs: e.cfg.TestTimeoutMs,
		})
		executed++
		totalTimeMs += out.WallTimeMs
		if out.MemoryKb != nil {
			totalMemoryKb += *out.MemoryKb
			memoryMeasured = true
		}

		if out.Failed() {
			switch out.Failure.Kind {
			case sandbox.FailTimeout:
				earlyVerdict = model.VerdictTimeLimitExceeded
			default:
				earlyVerdict = model.VerdictRuntimeError
			}
			recordAbort(result, cases, i, out, earlyVerdict)
			break
		}

		actual := strings.TrimSpace(out.Stdout)
		expected := strings.TrimSpace(tc.Output)
		status := model.TestCaseFailed
		if actual == expected {
			status = model.TestCasePassed
			result.PassedTestCases++
		} else {
			anyFailed = true
		}
		outputs = append(outputs, actual)
		result.TestCaseResults = append(result.TestCaseResults, model.TestCaseResult{
			Index:           i + 1,
			Input:           tc.Input,
			ExpectedOutput:  expected,
			ActualOutput:    actual,
			ExecutionTimeMs: out.WallTimeMs,
			MemoryKb:        out.MemoryKb,
			Status:          status,
		})
	}

	if executed > 0 {
		result.ExecutionTimeMs = &totalTimeMs
	}
	if memoryMeasured {
		result.MemoryUsedKb = &totalMemoryKb
	}
	if earlyVerdict != "" {
		return result
	}

	// The configured limits are enforced against the aggregate across all
	// test cases, not per case.
	switch {
	case totalTimeMs > int64(problem.TimeLimitSeconds)*int64(result.TotalTestCases)*1000:
		result.Verdict = model.VerdictTimeLimitExceeded
	case memoryMeasured && totalMemoryKb > int64(problem.MemoryLimitMb)*1024:
		result.Verdict = model.VerdictMemoryLimitExceeded
	case anyFailed:
		result.Verdict = model.VerdictWrongAnswer
	default:
		result.Verdict = model.VerdictAccepted
		result.Output = strings.Join(outputs, "\n")
	}
	return result
}

// recordAbort attaches the Error-status entry for the failing case and
// sets the early verdict. No further test cases run after an abort, but
// TotalTestCases keeps reporting the intended total.
func recordAbort(result *model.JudgeResult, cases []model.TestCase, index int, out sandbox.Outcome, verdict model.Verdict) {
	entry := model.TestCaseResult{
		Index:           index + 1,
		ExecutionTimeMs: out.WallTimeMs,
		MemoryKb:        out.MemoryKb,
		Status:          model.TestCaseError,
		Error:           out.Failure.Message,
	}
	if index < len(cases) {
		entry.Input = cases[index].Input
		entry.ExpectedOutput = strings.TrimSpace(cases[index].Output)
	}
	entry.ActualOutput = strings.TrimSpace(out.Stdout)
	result.TestCaseResults = append(result.TestCaseResults, entry)
	result.Verdict = verdict
	result.Error = out.Failure.Message
}

// systemFailure covers worker-side problems before any execution started
// (workspace or command template trouble). They are reported as a runtime
// error verdict so the submission still reaches a terminal state.
func (e *Engine) systemFailure(result *model.JudgeResult, cases []model.TestCase, msg string) *model.JudgeResult {
	out := sandbox.Outcome{Failure: &sandbox.Failure{Kind: sandbox.FailRuntime, Message: msg}}
	recordAbort(result, cases, 0, out, model.VerdictRuntimeError)
	return result
}

// resolveSource prefers the archived object when the submission carries a
// source key, verifying its digest against the recorded hash. Any problem
// with the archive falls back to the inline source text.
func (e *Engine) resolveSource(ctx context.Context, sub *model.Submission) string {
	if e.deps.Storage == nil || sub.SourceKey == "" {
		return sub.Code
	}
	obj, err := e.deps.Storage.GetObject(ctx, e.cfg.SourceBucket, sub.SourceKey)
	if err != nil {
		logger.Warn(ctx, "fetch archived source failed, using inline code",
			zap.String("submission_id", sub.ID), zap.Error(err))
		return sub.Code
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxArchivedSourceBytes))
	if err != nil {
		logger.Warn(ctx, "read archived source failed, using inline code",
			zap.String("submission_id", sub.ID), zap.Error(err))
		return sub.Code
	}
	if sub.SourceHash != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != sub.SourceHash {
			logger.Warn(ctx, "archived source hash mismatch, using inline code",
				zap.String("submission_id", sub.ID),
				zap.String("source_key", sub.SourceKey))
			return sub.Code
		}
	}
	return string(data)
}

// Retryable reports whether a judge error is worth a redelivery. Missing
// rows and unsupported languages are deterministic, retrying them can
// only produce the same failure.
func Retryable(err error) bool {
	return errors.GetCode(err).IsRetryable()
}
