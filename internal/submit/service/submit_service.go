// Package service implements the submission lifecycle: create the Pending
// record, archive the source, and hand the job to the judge queue. The
// heavy lifting happens in the judge worker; this side is deliberately
// thin glue around the data model.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clashoj/internal/common/cache"
	"clashoj/internal/common/mq"
	"clashoj/internal/common/storage"
	"clashoj/internal/judge/language"
	"clashoj/internal/judge/model"
	"clashoj/internal/judge/repository"
	"clashoj/pkg/errors"
	"clashoj/pkg/utils/logger"
)

const (
	idempotencyKeyPrefix = "submit:idempotency:"
	rateUserKeyPrefix    = "submit:rate:user:"
	defaultSourcePrefix  = "submissions"
	processingMarker     = "processing"
	defaultIdempotentTTL = 10 * time.Minute
)

// RateLimitConfig throttles per-user submissions over a sliding window.
type RateLimitConfig struct {
	UserMax int           `yaml:"userMax"`
	Window  time.Duration `yaml:"window"`
}

// Config holds submit service dependencies and settings.
type Config struct {
	Submissions repository.SubmissionRepository
	Storage     storage.ObjectStorage
	MQ          mq.MessageQueue
	Cache       cache.Cache

	JudgeTopic      string
	SourceBucket    string
	SourceKeyPrefix string
	MaxCodeBytes    int
	IdempotencyTTL  time.Duration
	RateLimit       RateLimitConfig
}

// SubmitService handles submission intake and dispatch.
type SubmitService struct {
	submissions repository.SubmissionRepository
	storage     storage.ObjectStorage
	mq          mq.MessageQueue
	cache       cache.Cache

	judgeTopic      string
	sourceBucket    string
	sourceKeyPrefix string
	maxCodeBytes    int
	idempotencyTTL  time.Duration
	rateLimit       RateLimitConfig
}

// SubmitInput describes one submission request.
type SubmitInput struct {
	UserID         string
	ProblemID      int64
	Language       string
	Code           string
	ContestID      string
	IdempotencyKey string
}

// NewSubmitService creates a new submit service.
func NewSubmitService(cfg Config) (*SubmitService, error) {
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.MQ == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.JudgeTopic == "" {
		return nil, fmt.Errorf("judge topic is required")
	}
	if cfg.SourceKeyPrefix == "" {
		cfg.SourceKeyPrefix = defaultSourcePrefix
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotentTTL
	}
	return &SubmitService{
		submissions:     cfg.Submissions,
		storage:         cfg.Storage,
		mq:              cfg.MQ,
		cache:           cfg.Cache,
		judgeTopic:      cfg.JudgeTopic,
		sourceBucket:    cfg.SourceBucket,
		sourceKeyPrefix: cfg.SourceKeyPrefix,
		maxCodeBytes:    cfg.MaxCodeBytes,
		idempotencyTTL:  cfg.IdempotencyTTL,
		rateLimit:       cfg.RateLimit,
	}, nil
}

// Submit creates a Pending submission, archives its source, and enqueues
// the judge job. The returned submission still carries the Pending
// verdict; callers poll GetSubmission for the terminal state.
func (s *SubmitService) Submit(ctx context.Context, input SubmitInput) (*model.Submission, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if err := s.checkRateLimit(ctx, input.UserID); err != nil {
		return nil, err
	}

	acquired, existingID, err := s.acquireIdempotency(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !acquired && existingID != "" {
		return s.submissions.GetByID(ctx, existingID)
	}

	submission := &model.Submission{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		ProblemID: input.ProblemID,
		Code:      input.Code,
		Language:  input.Language,
		Verdict:   model.VerdictPending,
		ContestID: input.ContestID,
		CreatedAt: time.Now(),
	}

	// Archived source is an optimization for the worker; losing it only
	// means the worker falls back to the inline code column.
	if s.storage != nil {
		key := fmt.Sprintf("%s/%s", s.sourceKeyPrefix, submission.ID)
		if err := s.uploadSource(ctx, key, input.Code); err != nil {
			logger.Warn(ctx, "archive source failed",
				zap.String("submission_id", submission.ID), zap.Error(err))
		} else {
			submission.SourceKey = key
			submission.SourceHash = hashSource(input.Code)
		}
	}

	if err := s.submissions.Create(ctx, nil, submission); err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey, acquired)
		return nil, err
	}

	if err := s.publishJudgeMessage(ctx, submission); err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey, acquired)
		return nil, err
	}

	s.finalizeIdempotency(ctx, input.IdempotencyKey, submission.ID, acquired)
	logger.Info(ctx, "submission enqueued",
		zap.String("submission_id", submission.ID),
		zap.String("language", submission.Language),
		zap.Int64("problem_id", submission.ProblemID))
	return submission, nil
}

// GetSubmission returns one submission through the cache-aside read path.
func (s *SubmitService) GetSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, errors.ValidationError("submission_id", "required")
	}
	return s.submissions.GetByID(ctx, submissionID)
}

func (s *SubmitService) validateInput(input SubmitInput) error {
	if input.UserID == "" {
		return errors.ValidationError("user_id", "required")
	}
	if input.ProblemID <= 0 {
		return errors.ValidationError("problem_id", "required")
	}
	if strings.TrimSpace(input.Code) == "" {
		return errors.ValidationError("code", "required")
	}
	if s.maxCodeBytes > 0 && len(input.Code) > s.maxCodeBytes {
		return errors.New(errors.CodeTooLarge).WithMessage("source code too large")
	}
	// Reject unsupported languages at the door instead of letting the
	// worker discover them.
	if _, err := language.Resolve(input.Language); err != nil {
		return err
	}
	return nil
}

func (s *SubmitService) checkRateLimit(ctx context.Context, userID string) error {
	if s.rateLimit.Window <= 0 || s.rateLimit.UserMax <= 0 {
		return nil
	}
	key := rateUserKeyPrefix + userID
	count, err := s.cache.Incr(ctx, key)
	if err != nil {
		return errors.Wrapf(err, errors.CacheError, "rate limit check failed")
	}
	if count == 1 {
		_ = s.cache.Expire(ctx, key, s.rateLimit.Window)
	}
	if int(count) > s.rateLimit.UserMax {
		return errors.New(errors.SubmitTooFrequently).WithMessage("submit too frequently")
	}
	return nil
}

func (s *SubmitService) acquireIdempotency(ctx context.Context, key string) (bool, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return true, "", nil
	}
	cacheKey := idempotencyKeyPrefix + key

	existing, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		return false, "", errors.Wrapf(err, errors.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}

	ok, err := s.cache.SetNX(ctx, cacheKey, processingMarker, s.idempotencyTTL)
	if err != nil {
		return false, "", errors.Wrapf(err, errors.CacheError, "reserve idempotency key failed")
	}
	if ok {
		return true, "", nil
	}
	existing, err = s.cache.Get(ctx, cacheKey)
	if err != nil {
		return false, "", errors.Wrapf(err, errors.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}
	return false, "", errors.New(errors.TooManyRequests).WithMessage("request is processing")
}

func (s *SubmitService) finalizeIdempotency(ctx context.Context, key, submissionID string, acquired bool) {
	if !acquired || strings.TrimSpace(key) == "" {
		return
	}
	cacheKey := idempotencyKeyPrefix + strings.TrimSpace(key)
	if err := s.cache.Set(ctx, cacheKey, submissionID, s.idempotencyTTL); err != nil {
		logger.Warn(ctx, "update idempotency key failed", zap.Error(err))
	}
}

func (s *SubmitService) releaseIdempotency(ctx context.Context, key string, acquired bool) {
	if !acquired || strings.TrimSpace(key) == "" {
		return
	}
	cacheKey := idempotencyKeyPrefix + strings.TrimSpace(key)
	if err := s.cache.Del(ctx, cacheKey); err != nil {
		logger.Warn(ctx, "release idempotency key failed", zap.Error(err))
	}
}

func (s *SubmitService) uploadSource(ctx context.Context, objectKey, source string) error {
	reader := io.NopCloser(strings.NewReader(source))
	defer reader.Close()
	return s.storage.PutObject(ctx, s.sourceBucket, objectKey, reader, int64(len(source)), "text/plain; charset=utf-8")
}

func (s *SubmitService) publishJudgeMessage(ctx context.Context, submission *model.Submission) error {
	body, err := model.JudgeMessage{
		SubmissionID: submission.ID,
		ContestID:    submission.ContestID,
	}.Encode()
	if err != nil {
		return errors.Wrapf(err, errors.SubmissionCreateFailed, "encode judge message failed")
	}
	message := mq.NewMessage(submission.ID, body)
	if err := s.mq.Publish(ctx, s.judgeTopic, message); err != nil {
		return errors.Wrapf(err, errors.SubmissionCreateFailed, "publish judge message failed")
	}
	return nil
}

func hashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
