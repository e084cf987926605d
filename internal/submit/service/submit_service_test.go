package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"clashoj/internal/common/db"
	"clashoj/internal/common/mq"
	"clashoj/internal/common/storage"
	"clashoj/internal/judge/model"
	"clashoj/internal/submit/service"
	"clashoj/pkg/errors"
)

type fakeSubmissions struct {
	created []*model.Submission
}

func (f *fakeSubmissions) Create(ctx context.Context, tx db.Transaction, s *model.Submission) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSubmissions) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	for _, s := range f.created {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errors.New(errors.SubmissionNotFound)
}

func (f *fakeSubmissions) GetForJudge(ctx context.Context, id string) (*model.Submission, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSubmissions) SaveResult(ctx context.Context, id string, res *model.JudgeResult) error {
	return nil
}

type fakeMQ struct {
	published []*mq.Message
	topics    []string
	err       error
}

func (f *fakeMQ) Publish(ctx context.Context, topic string, message *mq.Message) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, message)
	return nil
}

func (f *fakeMQ) Subscribe(ctx context.Context, topic string, handler mq.HandlerFunc) error {
	return nil
}

func (f *fakeMQ) SubscribeWithOptions(ctx context.Context, topic string, handler mq.HandlerFunc, opts *mq.SubscribeOptions) error {
	return nil
}

func (f *fakeMQ) Start() error                   { return nil }
func (f *fakeMQ) Stop() error                    { return nil }
func (f *fakeMQ) Ping(ctx context.Context) error { return nil }
func (f *fakeMQ) Close() error                   { return nil }

type storedObject struct {
	data        string
	contentType string
}

type fakeStorage struct {
	objects map[string]storedObject
	err     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]storedObject{}}
}

func (f *fakeStorage) GetObject(ctx context.Context, bucket, key string) (storage.ObjectReader, error) {
	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return readCloser{strings.NewReader(obj.data)}, nil
}

func (f *fakeStorage) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = storedObject{data: string(data), contentType: contentType}
	return nil
}

func (f *fakeStorage) StatObject(ctx context.Context, bucket, key string) (storage.ObjectStat, error) {
	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, fmt.Errorf("object %s not found", key)
	}
	return storage.ObjectStat{SizeBytes: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (f *fakeStorage) RemoveObject(ctx context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

type readCloser struct{ io.Reader }

func (readCloser) Close() error { return nil }

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
	nums map[string]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, nums: map[string]int64{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *fakeCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = fmt.Sprint(value)
	return true, nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, keys ...string) (int64, error) { return 0, nil }

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nums[key]++
	return c.nums[key], nil
}

func (c *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (c *fakeCache) Ping(ctx context.Context) error                                  { return nil }
func (c *fakeCache) Close() error                                                    { return nil }

type fixture struct {
	svc     *service.SubmitService
	subs    *fakeSubmissions
	queue   *fakeMQ
	storage *fakeStorage
	cache   *fakeCache
}

func newFixture(t *testing.T, mutate func(*service.Config)) *fixture {
	t.Helper()
	f := &fixture{
		subs:    &fakeSubmissions{},
		queue:   &fakeMQ{},
		storage: newFakeStorage(),
		cache:   newFakeCache(),
	}
	cfg := service.Config{
		Submissions:  f.subs,
		Storage:      f.storage,
		MQ:           f.queue,
		Cache:        f.cache,
		JudgeTopic:   "judge.tasks",
		SourceBucket: "sources",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := service.NewSubmitService(cfg)
	if err != nil {
		t.Fatalf("new submit service: %v", err)
	}
	f.svc = svc
	return f
}

func validInput() service.SubmitInput {
	return service.SubmitInput{
		UserID:    "user-1",
		ProblemID: 7,
		Language:  "cpp",
		Code:      "int main() { return 0; }",
	}
}

func TestSubmitCreatesPendingAndPublishes(t *testing.T) {
	f := newFixture(t, nil)

	sub, err := f.svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Verdict != model.VerdictPending {
		t.Fatalf("verdict = %s, want Pending", sub.Verdict)
	}
	if len(f.subs.created) != 1 {
		t.Fatalf("created %d submissions, want 1", len(f.subs.created))
	}
	if len(f.queue.published) != 1 || f.queue.topics[0] != "judge.tasks" {
		t.Fatalf("published %d messages to %v", len(f.queue.published), f.queue.topics)
	}

	var payload model.JudgeMessage
	if err := json.Unmarshal(f.queue.published[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.SubmissionID != sub.ID {
		t.Fatalf("payload submission id = %q, want %q", payload.SubmissionID, sub.ID)
	}
}

func TestSubmitArchivesSourceWithHash(t *testing.T) {
	f := newFixture(t, nil)
	input := validInput()

	sub, err := f.svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.SourceKey == "" {
		t.Fatalf("source key not set")
	}
	obj, ok := f.storage.objects["sources/"+sub.SourceKey]
	if !ok {
		t.Fatalf("source object missing under %q", sub.SourceKey)
	}
	if obj.data != input.Code {
		t.Fatalf("archived source differs from submitted code")
	}
	sum := sha256.Sum256([]byte(input.Code))
	if sub.SourceHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("source hash = %q", sub.SourceHash)
	}
}

func TestSubmitContinuesWhenArchiveFails(t *testing.T) {
	f := newFixture(t, nil)
	f.storage.err = fmt.Errorf("minio down")

	sub, err := f.svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("archive failure must not block intake: %v", err)
	}
	if sub.SourceKey != "" {
		t.Fatalf("source key must stay empty when archiving failed")
	}
	if len(f.queue.published) != 1 {
		t.Fatalf("job not enqueued")
	}
}

func TestSubmitPassesContestIDThrough(t *testing.T) {
	f := newFixture(t, nil)
	input := validInput()
	input.ContestID = "weekly-42"

	if _, err := f.svc.Submit(context.Background(), input); err != nil {
		t.Fatalf("submit: %v", err)
	}
	var payload model.JudgeMessage
	if err := json.Unmarshal(f.queue.published[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ContestID != "weekly-42" {
		t.Fatalf("contest id = %q, want weekly-42", payload.ContestID)
	}
}

func TestSubmitRejectsUnsupportedLanguage(t *testing.T) {
	f := newFixture(t, nil)
	input := validInput()
	input.Language = "brainfuck"

	_, err := f.svc.Submit(context.Background(), input)
	if errors.GetCode(err) != errors.LanguageNotSupported {
		t.Fatalf("code = %d, want LanguageNotSupported", errors.GetCode(err))
	}
	if len(f.subs.created) != 0 || len(f.queue.published) != 0 {
		t.Fatalf("side effects ran for an unsupported language")
	}
}

func TestSubmitIdempotencyKeyReturnsExisting(t *testing.T) {
	f := newFixture(t, nil)
	input := validInput()
	input.IdempotencyKey = "req-abc"

	first, err := f.svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("idempotent retry created a new submission: %s vs %s", first.ID, second.ID)
	}
	if len(f.queue.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(f.queue.published))
	}
}

func TestSubmitRateLimited(t *testing.T) {
	f := newFixture(t, func(cfg *service.Config) {
		cfg.RateLimit = service.RateLimitConfig{UserMax: 1, Window: time.Minute}
	})

	if _, err := f.svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := f.svc.Submit(context.Background(), validInput())
	if errors.GetCode(err) != errors.SubmitTooFrequently {
		t.Fatalf("code = %d, want SubmitTooFrequently", errors.GetCode(err))
	}
}

func TestSubmitReleasesIdempotencyOnPublishFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.queue.err = fmt.Errorf("broker unreachable")
	input := validInput()
	input.IdempotencyKey = "req-xyz"

	if _, err := f.svc.Submit(context.Background(), input); err == nil {
		t.Fatalf("expected publish failure")
	}

	// The key must be free again so a retry can go through.
	f.queue.err = nil
	if _, err := f.svc.Submit(context.Background(), input); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}
