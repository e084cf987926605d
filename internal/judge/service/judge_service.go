// Package service connects the judge queue to the engine. It owns the
// acknowledgment discipline: a message is committed only after the engine
// has persisted a terminal verdict, and deterministic failures are dropped
// instead of requeued.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clashoj/internal/common/mq"
	"clashoj/internal/judge/engine"
	"clashoj/internal/judge/model"
	"clashoj/pkg/errors"
	"clashoj/pkg/utils/contextkey"
	"clashoj/pkg/utils/logger"
)

const (
	defaultPoolSize     = 4
	defaultAcquireWait  = 2 * time.Second
	defaultJudgeTimeout = 5 * time.Minute
)

// Judger is the engine surface the consumer needs.
type Judger interface {
	Judge(ctx context.Context, submissionID string) (*model.JudgeResult, error)
}

// Config holds consumer settings.
type Config struct {
	// PoolSize bounds concurrent judge runs in this worker process.
	PoolSize int `yaml:"poolSize"`
	// JudgeTimeout caps one full judge run end to end.
	JudgeTimeout time.Duration `yaml:"judgeTimeout"`
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.JudgeTimeout <= 0 {
		c.JudgeTimeout = defaultJudgeTimeout
	}
}

// Service handles judge queue messages.
type Service struct {
	engine       Judger
	judgeTimeout time.Duration
	sem          chan struct{}
}

// New creates the judge consumer service.
func New(cfg Config, judger Judger) *Service {
	cfg.SetDefaults()
	return &Service{
		engine:       judger,
		judgeTimeout: cfg.JudgeTimeout,
		sem:          make(chan struct{}, cfg.PoolSize),
	}
}

// HandleMessage processes one judge request. The return value drives
// acknowledgment: nil commits the message, an error sends it to the dead
// letter. Deterministic failures (malformed payload, missing rows,
// unsupported language) can never succeed on redelivery, so they are
// logged and committed rather than returned.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return nil
	}
	payload, err := model.DecodeJudgeMessage(msg.Body)
	if err != nil {
		logger.Error(ctx, "dropping malformed judge message",
			zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, payload.SubmissionID)

	if err := s.acquireSlot(ctx); err != nil {
		return err
	}
	defer s.releaseSlot()

	judgeCtx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	defer cancel()

	res, err := s.engine.Judge(judgeCtx, payload.SubmissionID)
	if err != nil {
		if engine.Retryable(err) {
			logger.Error(ctx, "judge run failed",
				zap.String("submission_id", payload.SubmissionID), zap.Error(err))
			return err
		}
		logger.Error(ctx, "dropping unjudgeable submission",
			zap.String("submission_id", payload.SubmissionID), zap.Error(err))
		return nil
	}

	logger.Info(ctx, "judge message handled",
		zap.String("submission_id", payload.SubmissionID),
		zap.String("contest_id", payload.ContestID),
		zap.String("verdict", string(res.Verdict)))
	return nil
}

func (s *Service) acquireSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(defaultAcquireWait):
		return errors.New(errors.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}
