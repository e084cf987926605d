package repository

import (
	"context"
	"fmt"

	"clashoj/internal/common/db"
	"clashoj/internal/judge/model"
	"clashoj/pkg/errors"
)

// UserStatsRepository updates per-user solved statistics.
type UserStatsRepository interface {
	GetByID(ctx context.Context, userID string) (*model.User, error)
	// RecordAccepted adds the problem to the user's solved set and, only
	// when it was not already there, increments the matching difficulty
	// counter. Idempotent per (user, problem) pair.
	RecordAccepted(ctx context.Context, userID string, problemID int64, difficulty string) error
}

// MySQLUserStatsRepository implements UserStatsRepository with MySQL.
type MySQLUserStatsRepository struct {
	db db.Database
}

// NewUserStatsRepository creates a user stats repository.
func NewUserStatsRepository(database db.Database) *MySQLUserStatsRepository {
	return &MySQLUserStatsRepository{db: database}
}

// GetByID retrieves a user with solved counters.
func (r *MySQLUserStatsRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, errors.ValidationError("user_id", "required")
	}
	query := `
		SELECT id, username, easy_solved, medium_solved, hard_solved
		FROM users WHERE id = ? LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, userID)
	user := &model.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.EasySolved, &user.MediumSolved, &user.HardSolved); err != nil {
		if db.IsNoRows(err) {
			return nil, errors.New(errors.UserNotFound)
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "query user failed")
	}
	return user, nil
}

// RecordAccepted runs the solved-set insert and the counter bump in one
// transaction. INSERT IGNORE makes the whole thing idempotent: a re-judged
// or redelivered accepted submission affects zero rows and the counter is
// left alone.
func (r *MySQLUserStatsRepository) RecordAccepted(ctx context.Context, userID string, problemID int64, difficulty string) error {
	if userID == "" {
		return errors.ValidationError("user_id", "required")
	}
	if problemID <= 0 {
		return errors.ValidationError("problem_id", "required")
	}
	column, err := solvedColumn(difficulty)
	if err != nil {
		return err
	}

	txErr := r.db.Transaction(ctx, func(tx db.Transaction) error {
		res, err := tx.Exec(
			ctx,
			"INSERT IGNORE INTO user_solved_problems (user_id, problem_id) VALUES (?, ?)",
			userID, problemID,
		)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return nil
		}
		update := fmt.Sprintf("UPDATE users SET %s = %s + 1 WHERE id = ?", column, column)
		if _, err := tx.Exec(ctx, update, userID); err != nil {
			return err
		}
		return nil
	})
	if txErr != nil {
		return errors.Wrapf(txErr, errors.UserStatUpdateFailed, "record accepted failed")
	}
	return nil
}

func solvedColumn(difficulty string) (string, error) {
	switch difficulty {
	case model.DifficultyEasy:
		return "easy_solved", nil
	case model.DifficultyMedium:
		return "medium_solved", nil
	case model.DifficultyHard:
		return "hard_solved", nil
	default:
		return "", errors.Newf(errors.InvalidParams, "unknown difficulty: %q", difficulty)
	}
}
