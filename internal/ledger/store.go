package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

// TransferKind 钱包流水类型
type TransferKind string

const (
	KindPayment    TransferKind = "PAYMENT"
	KindWithdrawal TransferKind = "WITHDRAWAL"
	KindTransfer   TransferKind = "TRANSFER"
	KindRecharge   TransferKind = "RECHARGE"
)

// Store 账本状态存储。
//
// 每个写操作都在 Transaction 里完成：fn 返回错误时所有修改（账本记录、
// 钱包余额、事件）一起丢弃。ctx 中已经有本存储的事务时，嵌套调用直接
// 加入该事务，不会另开新事务。
type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View 只读访问；ctx 中有事务时读事务内的状态，否则读已提交的状态
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx 单个事务内可见的账本状态
type Tx interface {
	// FindPayment 记录不存在时返回 (nil, false, nil)
	FindPayment(ctx context.Context, orderID string) (*PaymentRecord, bool, error)
	// InsertPayment 写入记录并追加到订单索引
	InsertPayment(ctx context.Context, rec *PaymentRecord) error
	PaymentCount(ctx context.Context) (uint64, error)
	// OrderIDs 按写入顺序返回全部订单号
	OrderIDs(ctx context.Context) ([]string, error)
	// EachPayment 按写入顺序遍历记录，fn 返回错误时中止
	EachPayment(ctx context.Context, fn func(rec *PaymentRecord) error) error

	TotalReceived(ctx context.Context) (*uint256.Int, error)
	SetTotalReceived(ctx context.Context, total *uint256.Int) error

	// Emit 事件随事务提交，事务回滚则事件也不会发出
	Emit(ctx context.Context, evt Event) error

	Vault() Vault
}

// Vault 执行环境的钱包：账本的持有余额就是账本地址在这里的余额
type Vault interface {
	BalanceOf(ctx context.Context, addr Address) (*uint256.Int, error)
	// Attach 把调用附带的原生币从 from 划到 to，不触发接收回调
	Attach(ctx context.Context, from, to Address, amount *uint256.Int, ref string) error
	// Send 从 from 转给 to，并触发 to 的接收回调；回调失败则整笔失败
	Send(ctx context.Context, from, to Address, amount *uint256.Int, kind TransferKind) error
	// Mint 凭空给 to 增加余额（充值/水龙头）
	Mint(ctx context.Context, to Address, amount *uint256.Int) error
}
