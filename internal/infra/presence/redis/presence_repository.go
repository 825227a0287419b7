package redispresence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/domain"
)

// RedisPresenceRepository 是 PresenceRepository 接口的 Redis 实现。
// 每个房间一个 hash: <prefix>room:<id>:participants，field 为用户 ID，
// value 为昵称。hash 的按房间隔离满足契约要求的 key 隔离。
type RedisPresenceRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPresenceRepository 创建 RedisPresenceRepository 实例
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string) *RedisPresenceRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisPresenceRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "chat:"
	}
	return &RedisPresenceRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisPresenceRepository) roomParticipantsKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:participants", r.keyPrefix, roomID)
}

// Put 写入 (覆盖) 一条在场记录
func (r *RedisPresenceRepository) Put(ctx context.Context, roomID, userID uint, nickname string) error {
	key := r.roomParticipantsKey(roomID)
	field := strconv.FormatUint(uint64(userID), 10)
	if err := r.client.HSet(ctx, key, field, nickname).Err(); err != nil {
		return fmt.Errorf("redis: failed to put presence for room %d user %d on %s: %w", roomID, userID, key, err)
	}
	return nil
}

// Remove 删除一条在场记录 (记录不存在同样成功)
func (r *RedisPresenceRepository) Remove(ctx context.Context, roomID, userID uint) error {
	key := r.roomParticipantsKey(roomID)
	field := strconv.FormatUint(uint64(userID), 10)
	if err := r.client.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove presence for room %d user %d on %s: %w", roomID, userID, key, err)
	}
	return nil
}

// Has 报告用户当前是否在场
func (r *RedisPresenceRepository) Has(ctx context.Context, roomID, userID uint) (bool, error) {
	key := r.roomParticipantsKey(roomID)
	field := strconv.FormatUint(uint64(userID), 10)
	ok, err := r.client.HExists(ctx, key, field).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check presence for room %d user %d on %s: %w", roomID, userID, key, err)
	}
	return ok, nil
}

// Entries 返回房间当前的全部在场记录
func (r *RedisPresenceRepository) Entries(ctx context.Context, roomID uint) ([]domain.PresenceEntry, error) {
	key := r.roomParticipantsKey(roomID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get presence entries for room %d from %s: %w", roomID, key, err)
	}
	entries := make([]domain.PresenceEntry, 0, len(fields))
	for field, nickname := range fields {
		userID, parseErr := strconv.ParseUint(field, 10, 64)
		if parseErr != nil {
			// 损坏的 field 不应让整个列表失败，记录后跳过
			logrus.Warnf("redis: skipping malformed presence field '%s' in %s: %v", field, key, parseErr)
			continue
		}
		entries = append(entries, domain.PresenceEntry{UserID: uint(userID), Nickname: nickname})
	}
	return entries, nil
}

// Count 返回房间当前的在场人数
func (r *RedisPresenceRepository) Count(ctx context.Context, roomID uint) (int, error) {
	key := r.roomParticipantsKey(roomID)
	n, err := r.client.HLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to count presence for room %d on %s: %w", roomID, key, err)
	}
	return int(n), nil
}

// ReplaceAll 用给定集合原子地替换房间的全部在场记录 (reconciliation 用)。
// DEL + HSET 放在一个 pipeline 中执行。
func (r *RedisPresenceRepository) ReplaceAll(ctx context.Context, roomID uint, entries []domain.PresenceEntry) error {
	key := r.roomParticipantsKey(roomID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(entries) > 0 {
		fields := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			fields[strconv.FormatUint(uint64(e.UserID), 10)] = e.Nickname
		}
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to replace presence set for room %d on %s: %w", roomID, key, err)
	}
	return nil
}
