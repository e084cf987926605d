package repository

import "time"

// Cache key layout shared by the judge worker (invalidation side) and the
// submit service (read side). The judge never writes these entries, it
// only drops them; population is the read path's job.
const (
	submissionCacheKeyPrefix = "submission:"
	userStatsCacheKeyPrefix  = "user:stats:"

	defaultSubmissionCacheTTL      = 30 * time.Minute
	defaultSubmissionCacheEmptyTTL = 5 * time.Minute
)

// SubmissionCacheKey returns the cache key for one submission view.
func SubmissionCacheKey(submissionID string) string {
	return submissionCacheKeyPrefix + submissionID
}

// UserStatsCacheKey returns the cache key for a user's profile statistics.
func UserStatsCacheKey(userID string) string {
	return userStatsCacheKeyPrefix + userID
}
