package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 报名和审批都是"读余额-算-写余额"的多步操作，同一个 (活动, 用户) 的
// 重复提交必须串行化，否则会出现重复报名或重复扣款。
//
// 加锁：SET key value NX EX timeout
//   - NX 保证互斥，EX 防止持有者崩溃后死锁
//   - value 记录持有者，释放时校验，避免误删别人的锁
//
// 释放：Lua 脚本保证"校验+删除"的原子性
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 基于 Redis 的分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 持有者标识
	expiration time.Duration // 过期时间，防死锁
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// 先校验 value 是自己的再删除，整个过程用 Lua 脚本保证原子性
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewJoinLock 报名锁，按 (活动, 用户) 维度
// 不同用户、不同活动可以并发报名，同一组合串行
func NewJoinLock(client *redis.Client, eventID, userID int64) *DistributedLock {
	key := fmt.Sprintf("join:lock:event:%d:user:%d", eventID, userID)
	value := fmt.Sprintf("%d", time.Now().UnixNano())
	return NewDistributedLock(client, key, value, 30*time.Second)
}

// NewDecisionLock 审批锁，按报名记录维度
// 防止主办方对同一条报名并发做出多个决定
func NewDecisionLock(client *redis.Client, joinRequestID int64) *DistributedLock {
	key := fmt.Sprintf("join:lock:decision:%d", joinRequestID)
	value := fmt.Sprintf("%d", time.Now().UnixNano())
	return NewDistributedLock(client, key, value, 30*time.Second)
}
