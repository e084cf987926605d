package repository

import (
	"context"
	"encoding/json"
	"time"

	"clashoj/internal/common/cache"
	"clashoj/internal/common/db"
	"clashoj/internal/judge/model"
	"clashoj/pkg/errors"
)

// SubmissionRepository persists submissions and judge results.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error
	GetByID(ctx context.Context, submissionID string) (*model.Submission, error)
	// GetForJudge bypasses the cache so the worker always sees the stored
	// row, never a stale or null-cached view.
	GetForJudge(ctx context.Context, submissionID string) (*model.Submission, error)
	// SaveResult overwrites the judged fields keyed by submission id. It is
	// deliberately safe to re-run for the same id so a redelivered job can
	// persist the same terminal verdict again.
	SaveResult(ctx context.Context, submissionID string, result *model.JudgeResult) error
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL,
// with a cache-aside read path when a cache is configured.
type MySQLSubmissionRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewSubmissionRepository creates a submission repository with default TTLs.
func NewSubmissionRepository(database db.Database, cacheClient cache.Cache) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultSubmissionCacheTTL,
		emptyTTL: defaultSubmissionCacheEmptyTTL,
	}
}

const submissionColumns = "id, user_id, problem_id, code, language, verdict, execution_time_ms, memory_used_kb, passed_test_cases, total_test_cases, output, error, test_case_results, source_key, source_hash, contest_id, created_at"

// Create inserts a submission in its initial Pending state.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error {
	if submission == nil {
		return errors.ValidationError("submission", "required")
	}
	if submission.ID == "" {
		return errors.ValidationError("id", "required")
	}
	if submission.UserID == "" {
		return errors.ValidationError("user_id", "required")
	}
	if submission.ProblemID <= 0 {
		return errors.ValidationError("problem_id", "required")
	}
	if submission.Language == "" {
		return errors.ValidationError("language", "required")
	}
	if submission.Code == "" {
		return errors.ValidationError("code", "required")
	}

	query := `
		INSERT INTO submissions
		(id, user_id, problem_id, code, language, verdict, source_key, source_hash, contest_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.ID,
		submission.UserID,
		submission.ProblemID,
		submission.Code,
		submission.Language,
		string(model.VerdictPending),
		submission.SourceKey,
		submission.SourceHash,
		submission.ContestID,
	)
	if err != nil {
		return errors.Wrapf(err, errors.DatabaseError, "create submission failed")
	}
	return nil
}

// GetByID retrieves a submission, via cache when one is configured.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, errors.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return r.getByIDFromDB(ctx, submissionID)
	}
	submission, err := cache.GetWithCached[*model.Submission](
		ctx,
		r.cache,
		SubmissionCacheKey(submissionID),
		r.ttl,
		r.emptyTTL,
		func(s *model.Submission) bool { return s == nil },
		marshalSubmission,
		unmarshalSubmission,
		func(ctx context.Context) (*model.Submission, error) {
			s, err := r.getByIDFromDB(ctx, submissionID)
			if err != nil {
				if errors.GetCode(err) == errors.SubmissionNotFound {
					return nil, nil
				}
				return nil, err
			}
			return s, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, errors.New(errors.SubmissionNotFound)
	}
	return submission, nil
}

// GetForJudge reads straight from the database.
func (r *MySQLSubmissionRepository) GetForJudge(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, errors.ValidationError("submission_id", "required")
	}
	return r.getByIDFromDB(ctx, submissionID)
}

func (r *MySQLSubmissionRepository) getByIDFromDB(ctx context.Context, submissionID string) (*model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	row := r.db.QueryRow(ctx, query, submissionID)

	submission := &model.Submission{}
	var verdict string
	var output, errText, testResults, sourceKey, sourceHash, contestID *string
	if err := row.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.ProblemID,
		&submission.Code,
		&submission.Language,
		&verdict,
		&submission.ExecutionTimeMs,
		&submission.MemoryUsedKb,
		&submission.PassedTestCases,
		&submission.TotalTestCases,
		&output,
		&errText,
		&testResults,
		&sourceKey,
		&sourceHash,
		&contestID,
		&submission.CreatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, errors.New(errors.SubmissionNotFound)
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "query submission failed")
	}
	submission.Verdict = model.Verdict(verdict)
	if output != nil {
		submission.Output = *output
	}
	if errText != nil {
		submission.Error = *errText
	}
	if sourceKey != nil {
		submission.SourceKey = *sourceKey
	}
	if sourceHash != nil {
		submission.SourceHash = *sourceHash
	}
	if contestID != nil {
		submission.ContestID = *contestID
	}
	if testResults != nil && *testResults != "" {
		if err := json.Unmarshal([]byte(*testResults), &submission.TestCaseResults); err != nil {
			return nil, errors.Wrapf(err, errors.DatabaseError, "decode test case results failed")
		}
	}
	return submission, nil
}

// SaveResult overwrites the judged fields for one submission.
func (r *MySQLSubmissionRepository) SaveResult(ctx context.Context, submissionID string, result *model.JudgeResult) error {
	if submissionID == "" {
		return errors.ValidationError("submission_id", "required")
	}
	if result == nil {
		return errors.ValidationError("result", "required")
	}
	testResults, err := json.Marshal(result.TestCaseResults)
	if err != nil {
		return errors.Wrapf(err, errors.InternalServerError, "encode test case results failed")
	}

	query := `
		UPDATE submissions
		SET verdict = ?, execution_time_ms = ?, memory_used_kb = ?,
			passed_test_cases = ?, total_test_cases = ?,
			output = ?, error = ?, test_case_results = ?
		WHERE id = ?
	`
	res, err := r.db.Exec(
		ctx,
		query,
		string(result.Verdict),
		result.ExecutionTimeMs,
		result.MemoryUsedKb,
		result.PassedTestCases,
		result.TotalTestCases,
		result.Output,
		nullableString(result.Error),
		string(testResults),
		submissionID,
	)
	if err != nil {
		return errors.Wrapf(err, errors.DatabaseError, "save judge result failed")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		// Zero rows is fine on redelivery when the identical verdict is
		// already stored, but a missing row means the submission vanished.
		if exists, checkErr := r.exists(ctx, submissionID); checkErr == nil && !exists {
			return errors.New(errors.SubmissionNotFound)
		}
	}
	return nil
}

func (r *MySQLSubmissionRepository) exists(ctx context.Context, submissionID string) (bool, error) {
	row := r.db.QueryRow(ctx, "SELECT 1 FROM submissions WHERE id = ? LIMIT 1", submissionID)
	var one int
	if err := row.Scan(&one); err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalSubmission(submission *model.Submission) string {
	if submission == nil {
		return ""
	}
	data, err := json.Marshal(submission)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalSubmission(data string) (*model.Submission, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var submission model.Submission
	if err := json.Unmarshal([]byte(data), &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}
