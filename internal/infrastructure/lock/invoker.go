package lock

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// InvocationLocker 串行化同一账本的外部调用
type InvocationLocker interface {
	// Acquire 阻塞直到拿到锁，返回的 release 必须调用
	Acquire(ctx context.Context, requestID string) (release func(), err error)
}

// RedisInvoker 多实例部署时使用
type RedisInvoker struct {
	client        *redis.Client
	ledgerAddr    string
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisInvoker(client *redis.Client, ledgerAddr string, retryInterval time.Duration, maxRetries int) *RedisInvoker {
	return &RedisInvoker{
		client:        client,
		ledgerAddr:    ledgerAddr,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

func (r *RedisInvoker) Acquire(ctx context.Context, requestID string) (func(), error) {
	l := NewInvokeLock(r.client, r.ledgerAddr, requestID)
	if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		// 释放锁不跟随请求 ctx，请求取消了也要把锁还回去
		if err := l.Unlock(context.Background()); err != nil {
			log.Printf("[InvokeLock] 释放锁失败: ledger=%s, request=%s, err=%v", r.ledgerAddr, requestID, err)
		}
	}, nil
}

// LocalInvoker 单进程（内存存储）使用
type LocalInvoker struct {
	sem chan struct{}
}

func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{sem: make(chan struct{}, 1)}
}

func (l *LocalInvoker) Acquire(ctx context.Context, _ string) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-l.sem }) }, nil
}
