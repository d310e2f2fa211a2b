package service

import (
	"github.com/cespare/xxhash/v2"
)

// Bucketer assigns users to deterministic percentile buckets for gradual
// rollouts. It is stateless: the same (flagKey, userID) pair lands in the
// same bucket across processes and restarts.
type Bucketer struct{}

// NewBucketer returns a Bucketer.
func NewBucketer() Bucketer { return Bucketer{} }

// InBucket reports whether the user falls inside the rollout percentage for
// the flag. percentage 0 never matches, 100 always matches; otherwise the
// user's bucket in [0,100) is compared against the threshold.
func (Bucketer) InBucket(flagKey, userID string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}
	return bucketOf(flagKey, userID) < percentage
}

// bucketOf maps a (flag, user) pair to its slot in [0,100).
func bucketOf(flagKey, userID string) int {
	h := xxhash.Sum64String(flagKey + "-" + userID)
	return int(h % 100)
}
