package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 账本的重入锁只在单个进程内有效。多实例部署时，两个实例可能同时处理
// 同一个账本的 withdraw：
//
//   实例1: 读持有余额=700 -> 转出700 -> 余额=0
//   实例2: 读持有余额=700 -> 转出700 -> 余额=-700 超提了！
//
// 按账本地址加分布式锁后，同一账本的外部调用在所有实例之间串行执行。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止进程崩溃后死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本先比较 value 再删除，保证原子性
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（持有者标识）
	expiration time.Duration // 锁的过期时间
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
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
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

// Unlock 释放锁，只删除自己持有的锁
//
//	A 获取锁 -> A 超时，锁过期 -> B 获取锁 -> A 执行完调用 Unlock
//	不比较 value 的话 A 会把 B 的锁删掉
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// NewInvokeLock 账本调用锁（按账本地址维度）
//
// 不同账本互不影响，同一账本的 pay / withdraw / withdrawAll 串行。
// value 用 requestID，便于追踪是哪个请求持有锁
func NewInvokeLock(client *redis.Client, ledgerAddr, requestID string) *DistributedLock {
	key := fmt.Sprintf("ledger:lock:invoke:%s", ledgerAddr)
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}
