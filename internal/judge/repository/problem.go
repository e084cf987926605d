package repository

import (
	"context"
	"encoding/json"

	"clashoj/internal/common/db"
	"clashoj/internal/judge/model"
	"clashoj/pkg/errors"
)

// ProblemRepository reads problem data. The judge never writes problems.
type ProblemRepository interface {
	GetByID(ctx context.Context, problemID int64) (*model.Problem, error)
}

// MySQLProblemRepository implements ProblemRepository with MySQL. Test
// cases are stored as JSON columns alongside the limits.
type MySQLProblemRepository struct {
	db db.Database
}

// NewProblemRepository creates a problem repository.
func NewProblemRepository(database db.Database) *MySQLProblemRepository {
	return &MySQLProblemRepository{db: database}
}

// GetByID retrieves a problem with its test cases and limits.
func (r *MySQLProblemRepository) GetByID(ctx context.Context, problemID int64) (*model.Problem, error) {
	if problemID <= 0 {
		return nil, errors.ValidationError("problem_id", "required")
	}
	query := `
		SELECT id, title, difficulty, time_limit_seconds, memory_limit_mb,
			sample_test_cases, hidden_test_cases
		FROM problems WHERE id = ? LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, problemID)

	problem := &model.Problem{}
	var sampleJSON, hiddenJSON []byte
	if err := row.Scan(
		&problem.ID,
		&problem.Title,
		&problem.Difficulty,
		&problem.TimeLimitSeconds,
		&problem.MemoryLimitMb,
		&sampleJSON,
		&hiddenJSON,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, errors.New(errors.ProblemNotFound)
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "query problem failed")
	}
	if len(sampleJSON) > 0 {
		if err := json.Unmarshal(sampleJSON, &problem.SampleTestCases); err != nil {
			return nil, errors.Wrapf(err, errors.TestCaseInvalid, "decode sample test cases failed")
		}
	}
	if len(hiddenJSON) > 0 {
		if err := json.Unmarshal(hiddenJSON, &problem.HiddenTestCases); err != nil {
			return nil, errors.Wrapf(err, errors.TestCaseInvalid, "decode hidden test cases failed")
		}
	}
	return problem, nil
}
