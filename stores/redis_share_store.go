package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisShareStore stores resource->shared-users in Redis sets (key: share:{resourceID})
type RedisShareStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "share:%s"
}

func NewRedisShareStore(client *redis.Client) *RedisShareStore {
	return &RedisShareStore{client: client, keyFmt: "share:%s"}
}

func (r *RedisShareStore) key(resourceID string) string {
	return fmt.Sprintf(r.keyFmt, resourceID)
}

func (r *RedisShareStore) Share(ctx context.Context, resourceID, userID string) error {
	return r.client.SAdd(ctx, r.key(resourceID), userID).Err()
}

func (r *RedisShareStore) Unshare(ctx context.Context, resourceID, userID string) error {
	return r.client.SRem(ctx, r.key(resourceID), userID).Err()
}

func (r *RedisShareStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	return r.client.SIsMember(ctx, r.key(resourceID), userID).Result()
}

func (r *RedisShareStore) ListSharedWith(ctx context.Context, resourceID string) ([]string, error) {
	res, err := r.client.SMembers(ctx, r.key(resourceID)).Result()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RedisAssignmentStore stores resource->assigned-users in Redis sets (key: assign:{resourceID})
type RedisAssignmentStore struct {
	client *redis.Client
	keyFmt string
}

func NewRedisAssignmentStore(client *redis.Client) *RedisAssignmentStore {
	return &RedisAssignmentStore{client: client, keyFmt: "assign:%s"}
}

func (r *RedisAssignmentStore) key(resourceID string) string {
	return fmt.Sprintf(r.keyFmt, resourceID)
}

func (r *RedisAssignmentStore) Assign(ctx context.Context, resourceID, userID string) error {
	return r.client.SAdd(ctx, r.key(resourceID), userID).Err()
}

func (r *RedisAssignmentStore) Unassign(ctx context.Context, resourceID, userID string) error {
	return r.client.SRem(ctx, r.key(resourceID), userID).Err()
}

func (r *RedisAssignmentStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	return r.client.SIsMember(ctx, r.key(resourceID), userID).Result()
}
