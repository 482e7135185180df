package ledger

import "errors"

var (
	ErrInvalidAmount          = errors.New("金额必须大于0")
	ErrInvalidOrderID         = errors.New("订单号不合法")
	ErrDuplicateOrder         = errors.New("订单已支付，请勿重复提交")
	ErrOrderNotFound          = errors.New("订单不存在")
	ErrUnauthorized           = errors.New("仅所有者可执行该操作")
	ErrInsufficientBalance    = errors.New("账本余额不足")
	ErrNothingToWithdraw      = errors.New("账本余额为0，无可提现金额")
	ErrTransferFailed         = errors.New("转账失败")
	ErrReentrantCall          = errors.New("重入调用被拒绝")
	ErrDirectTransferRejected = errors.New("账本不接受 pay 以外的转入")
)

// 执行环境层面的错误
var (
	ErrInsufficientFunds = errors.New("钱包余额不足")
	ErrOverflow          = errors.New("金额溢出")
	ErrInvalidOwner      = errors.New("所有者地址不能为空")
)
