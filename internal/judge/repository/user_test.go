package repository_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"clashoj/internal/common/db"
	"clashoj/internal/judge/model"
	"clashoj/internal/judge/repository"
	"clashoj/pkg/errors"
)

type fakeResult struct{ affected int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

// fakeStatsTx records every statement so tests can assert on which SQL ran.
type fakeStatsTx struct {
	insertAffected int64
	execs          []string
	args           [][]interface{}
}

func (t *fakeStatsTx) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	t.execs = append(t.execs, query)
	t.args = append(t.args, args)
	if strings.HasPrefix(query, "INSERT IGNORE") {
		return fakeResult{affected: t.insertAffected}, nil
	}
	return fakeResult{affected: 1}, nil
}

func (t *fakeStatsTx) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, fmt.Errorf("unexpected Query in transaction: %s", query)
}

func (t *fakeStatsTx) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return failingRow{}
}

func (t *fakeStatsTx) Commit() error   { return nil }
func (t *fakeStatsTx) Rollback() error { return nil }

type failingRow struct{}

func (failingRow) Scan(dest ...interface{}) error { return fmt.Errorf("unexpected QueryRow") }

type fakeStatsDB struct {
	tx           *fakeStatsTx
	transactions int
}

func (d *fakeStatsDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, fmt.Errorf("unexpected Query: %s", query)
}

func (d *fakeStatsDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return failingRow{}
}

func (d *fakeStatsDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, fmt.Errorf("unexpected Exec outside transaction: %s", query)
}

func (d *fakeStatsDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	d.transactions++
	return fn(d.tx)
}

func (d *fakeStatsDB) Ping(ctx context.Context) error { return nil }
func (d *fakeStatsDB) Close() error                   { return nil }

func counterUpdates(execs []string) []string {
	var updates []string
	for _, q := range execs {
		if strings.HasPrefix(q, "UPDATE users SET") {
			updates = append(updates, q)
		}
	}
	return updates
}

func TestRecordAcceptedFirstSolveBumpsCounter(t *testing.T) {
	database := &fakeStatsDB{tx: &fakeStatsTx{insertAffected: 1}}
	repo := repository.NewUserStatsRepository(database)

	err := repo.RecordAccepted(context.Background(), "user-1", 7, model.DifficultyMedium)
	if err != nil {
		t.Fatalf("RecordAccepted: %v", err)
	}

	updates := counterUpdates(database.tx.execs)
	if len(updates) != 1 {
		t.Fatalf("expected exactly one counter update, got %d (%v)", len(updates), database.tx.execs)
	}
	if !strings.Contains(updates[0], "medium_solved = medium_solved + 1") {
		t.Fatalf("expected medium counter bump, got %q", updates[0])
	}
	if database.transactions != 1 {
		t.Fatalf("expected one transaction, got %d", database.transactions)
	}
}

func TestRecordAcceptedRerunLeavesCountersAlone(t *testing.T) {
	database := &fakeStatsDB{tx: &fakeStatsTx{insertAffected: 0}}
	repo := repository.NewUserStatsRepository(database)

	// Zero affected rows means the (user, problem) pair was already in the
	// solved set: a re-judged or redelivered accepted submission.
	err := repo.RecordAccepted(context.Background(), "user-1", 7, model.DifficultyMedium)
	if err != nil {
		t.Fatalf("RecordAccepted: %v", err)
	}

	if updates := counterUpdates(database.tx.execs); len(updates) != 0 {
		t.Fatalf("expected no counter update on rerun, got %v", updates)
	}
	if len(database.tx.execs) != 1 {
		t.Fatalf("expected only the solved-set insert, got %v", database.tx.execs)
	}
}

func TestRecordAcceptedUnknownDifficultyFailsBeforeWriting(t *testing.T) {
	database := &fakeStatsDB{tx: &fakeStatsTx{insertAffected: 1}}
	repo := repository.NewUserStatsRepository(database)

	err := repo.RecordAccepted(context.Background(), "user-1", 7, "legendary")
	if errors.GetCode(err) != errors.InvalidParams {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
	if database.transactions != 0 {
		t.Fatalf("expected no transaction, got %d", database.transactions)
	}
}
