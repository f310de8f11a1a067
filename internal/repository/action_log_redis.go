package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/engagement-service/internal/model"
)

const actionLogKeyPrefix = "ratelimit:"

// reserveScript 原子地统计窗口并在未超额时写入
// KEYS[1]=key ARGV[1]=min score ARGV[2]=limit ARGV[3]=score ARGV[4]=member ARGV[5]=ttl ms
var reserveScript = redis.NewScript(`
local n = redis.call('ZCOUNT', KEYS[1], ARGV[1], '+inf')
if n >= tonumber(ARGV[2]) then
  return {n, 0}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {n, 1}
`)

// RedisActionLogRepository 用有序集合保存行为日志：每个 (action, user) 一个 key，score 为毫秒时间戳
type RedisActionLogRepository struct {
	client    *redis.Client
	keyTTL    func(model.ActionKind) time.Duration
	scanCount int64
}

type RedisOption func(*RedisActionLogRepository)

// WithKeyTTL 指定每种行为 key 的过期时间（至少覆盖其窗口），默认 24h
func WithKeyTTL(f func(model.ActionKind) time.Duration) RedisOption {
	return func(r *RedisActionLogRepository) { r.keyTTL = f }
}

func NewRedisActionLogRepository(client *redis.Client, opts ...RedisOption) *RedisActionLogRepository {
	r := &RedisActionLogRepository{
		client:    client,
		keyTTL:    func(model.ActionKind) time.Duration { return 24 * time.Hour },
		scanCount: 500,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func actionLogKey(action model.ActionKind, userID string) string {
	return fmt.Sprintf("%s%s:%s", actionLogKeyPrefix, action, userID)
}

// exclusive 生成 "(ms" 形式的开区间下界
func exclusive(t time.Time) string {
	return "(" + strconv.FormatInt(t.UnixMilli(), 10)
}

func (r *RedisActionLogRepository) CountSince(ctx context.Context, userID string, action model.ActionKind, since time.Time) (int64, error) {
	return r.client.ZCount(ctx, actionLogKey(action, userID), exclusive(since), "+inf").Result()
}

func (r *RedisActionLogRepository) Create(ctx context.Context, log *model.ActionLog) error {
	key := actionLogKey(log.Action, log.UserID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(log.CreatedAt.UnixMilli()), Member: log.ID})
		pipe.PExpire(ctx, key, r.keyTTL(log.Action))
		return nil
	})
	return err
}

func (r *RedisActionLogRepository) Reserve(ctx context.Context, log *model.ActionLog, since time.Time, limit int) (int64, bool, error) {
	key := actionLogKey(log.Action, log.UserID)
	res, err := reserveScript.Run(ctx, r.client, []string{key},
		exclusive(since),
		limit,
		log.CreatedAt.UnixMilli(),
		log.ID,
		r.keyTTL(log.Action).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected reserve reply %v", res)
	}
	return res[0], res[1] == 1, nil
}

func (r *RedisActionLogRepository) PurgeBefore(ctx context.Context, cutoff time.Time, actions []model.ActionKind) (int64, error) {
	var removed int64
	for _, action := range actions {
		var cursor uint64
		match := actionLogKeyPrefix + string(action) + ":*"
		for {
			keys, next, err := r.client.Scan(ctx, cursor, match, r.scanCount).Result()
			if err != nil {
				return removed, err
			}
			if len(keys) > 0 {
				cmds := make([]*redis.IntCmd, 0, len(keys))
				_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
					for _, key := range keys {
						cmds = append(cmds, pipe.ZRemRangeByScore(ctx, key, "-inf", exclusive(cutoff)))
					}
					return nil
				})
				if err != nil {
					return removed, err
				}
				for _, cmd := range cmds {
					removed += cmd.Val()
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return removed, nil
}
