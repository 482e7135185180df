package ledger

import "sync/atomic"

// ============================================================================
// 重入锁
// ============================================================================
//
// 【和互斥锁的区别】
//
// 外部调用之间的串行化由执行环境保证（见 service 层的调用锁），
// 这里防的是"调用还没结束，又从内部绕回来调用账本"：
//
//   withdraw -> 给所有者转账 -> 所有者的接收回调 -> 再次 withdraw
//
// 嵌套调用和外层在同一个 goroutine 上，用 sync.Mutex 会直接死锁，
// 所以用一个标志位：忙的时候直接拒绝，返回 ErrReentrantCall。
//
// ============================================================================

// ReentrancyLock 两态标志：idle / busy
type ReentrancyLock struct {
	busy atomic.Bool
}

// Enter busy 时返回 ErrReentrantCall，否则进入 busy
func (l *ReentrancyLock) Enter() error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit 无条件回到 idle
func (l *ReentrancyLock) Exit() {
	l.busy.Store(false)
}

// Busy 是否有受保护的调用正在进行
func (l *ReentrancyLock) Busy() bool {
	return l.busy.Load()
}

// guarded 在重入锁保护下执行 fn，任何退出路径（成功、校验失败、转账失败、panic）都会释放
func (l *ReentrancyLock) guarded(fn func() error) error {
	if err := l.Enter(); err != nil {
		return err
	}
	defer l.Exit()
	return fn()
}
