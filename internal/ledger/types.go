package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Address 链上地址（调用方、所有者、账本自身）
type Address = common.Address

// MaxOrderIDLength 订单号最大字节数，与数据库唯一索引宽度一致
const MaxOrderIDLength = 255

// Call 一次外部调用的上下文：经过认证的调用方、附带的原生币、调用时间
type Call struct {
	Caller Address
	Value  *uint256.Int
	Time   uint64
}

// HasValue 调用是否附带了原生币
func (c Call) HasValue() bool {
	return c.Value != nil && !c.Value.IsZero()
}

// PaymentRecord 支付记录，创建后不可修改、不可删除
type PaymentRecord struct {
	OrderID   string       `json:"order_id"`
	Amount    *uint256.Int `json:"-"`
	Payer     Address      `json:"payer"`
	Timestamp uint64       `json:"timestamp"`
}

// Clone 返回深拷贝，调用方修改返回值不会影响账本
func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Amount != nil {
		c.Amount = r.Amount.Clone()
	}
	return &c
}

// ============================================================================
// 事件
// ============================================================================

const (
	EventPaymentReceived = "PaymentReceived"
	EventWithdrawal      = "Withdrawal"
)

// Event 账本对外发出的事件
type Event interface {
	EventName() string
}

// PaymentReceived 每笔支付成功后发出
type PaymentReceived struct {
	OrderID   string
	Amount    *uint256.Int
	Payer     Address
	Timestamp uint64
}

func (PaymentReceived) EventName() string { return EventPaymentReceived }

// Withdrawal 每次提现成功后发出
type Withdrawal struct {
	To        Address
	Amount    *uint256.Int
	Timestamp uint64
}

func (Withdrawal) EventName() string { return EventWithdrawal }

// ============================================================================
// 接收回调
// ============================================================================

// ReceiveHook 地址收到转账时被调用，返回错误表示拒收，整笔转账失败。
// ctx 携带当前调用的事务，回调内对账本的嵌套调用会加入同一事务。
type ReceiveHook func(ctx context.Context, from Address, amount *uint256.Int) error

// Receivers 地址 -> 接收回调 的注册表
type Receivers struct {
	mu    sync.RWMutex
	hooks map[Address]ReceiveHook
}

func NewReceivers() *Receivers {
	return &Receivers{hooks: make(map[Address]ReceiveHook)}
}

func (r *Receivers) Register(addr Address, hook ReceiveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[addr] = hook
}

func (r *Receivers) Unregister(addr Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, addr)
}

// Notify 触发 to 的接收回调，没有注册回调时直接接受
func (r *Receivers) Notify(ctx context.Context, from, to Address, amount *uint256.Int) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hook, ok := r.hooks[to]
	r.mu.RUnlock()
	if !ok || hook == nil {
		return nil
	}
	return hook(ctx, from, amount)
}
