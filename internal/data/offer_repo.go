package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tolkdirekt/dispatchd/internal/core"
)

// RedisOfferRepo stores the transient offer set per job as a Redis set.
// Replace runs DEL+SADD in one pipeline so a reader never observes a
// half-written set. Membership (SISMEMBER) is the eligibility check that
// precedes every acceptance attempt.
type RedisOfferRepo struct {
	client redis.UniversalClient
}

// NewRedisOfferRepo creates a RedisOfferRepo with the given Redis client.
func NewRedisOfferRepo(client redis.UniversalClient) *RedisOfferRepo {
	return &RedisOfferRepo{client: client}
}

var _ core.OfferRepository = (*RedisOfferRepo)(nil)

func offerKey(jobID string) string {
	return "offer:" + jobID
}

// Replace atomically swaps the offer set for a job. An empty candidate list
// clears the set.
func (r *RedisOfferRepo) Replace(ctx context.Context, jobID string, translatorIDs []string) error {
	if jobID == "" {
		return errors.New("job id is required")
	}

	key := offerKey(jobID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(translatorIDs) > 0 {
			members := make([]any, len(translatorIDs))
			for i, id := range translatorIDs {
				members[i] = id
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace offer set: %w", err)
	}
	return nil
}

// Contains reports whether a translator is in the job's offer set.
func (r *RedisOfferRepo) Contains(ctx context.Context, jobID, translatorID string) (bool, error) {
	if jobID == "" || translatorID == "" {
		return false, errors.New("job id and translator id are required")
	}

	ok, err := r.client.SIsMember(ctx, offerKey(jobID), translatorID).Result()
	if err != nil {
		return false, fmt.Errorf("offer membership: %w", err)
	}
	return ok, nil
}

// Members returns the current offer set for a job.
func (r *RedisOfferRepo) Members(ctx context.Context, jobID string) ([]string, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}

	members, err := r.client.SMembers(ctx, offerKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("offer members: %w", err)
	}
	return members, nil
}

// Clear destroys the offer set for a job, reporting whether one existed.
func (r *RedisOfferRepo) Clear(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, errors.New("job id is required")
	}

	removed, err := r.client.Del(ctx, offerKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("clear offer set: %w", err)
	}
	return removed > 0, nil
}
