package handler

import (
	"errors"
	"io"

	"payledger/internal/infrastructure/lock"
	"payledger/internal/ledger"
	"payledger/internal/service"
	"payledger/pkg/response"
	"payledger/pkg/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledgerService *service.LedgerService
	walletService *service.WalletService
	decimals      int32 // 展示金额的小数位
}

func NewHandler(ledgerService *service.LedgerService, walletService *service.WalletService, decimals int32) *Handler {
	return &Handler{
		ledgerService: ledgerService,
		walletService: walletService,
		decimals:      decimals,
	}
}

// errorCodes 按顺序匹配，TransferFailed 放最前面
var errorCodes = []struct {
	err  error
	code int
}{
	{ledger.ErrTransferFailed, response.CodeTransferFailed},
	{ledger.ErrInvalidAmount, response.CodeInvalidAmount},
	{ledger.ErrInvalidOrderID, response.CodeInvalidOrderID},
	{ledger.ErrDuplicateOrder, response.CodeDuplicateOrder},
	{ledger.ErrOrderNotFound, response.CodeOrderNotFound},
	{ledger.ErrUnauthorized, response.CodeNotOwner},
	{ledger.ErrInsufficientBalance, response.CodeInsufficientBalance},
	{ledger.ErrNothingToWithdraw, response.CodeNothingToWithdraw},
	{ledger.ErrReentrantCall, response.CodeReentrantCall},
	{ledger.ErrDirectTransferRejected, response.CodeDirectTransferRejected},
	{ledger.ErrInsufficientFunds, response.CodeInsufficientFunds},
	{ledger.ErrOverflow, response.CodeOverflow},
	{service.ErrBusy, response.CodeBusy},
	{service.ErrFaucetDisabled, response.CodeFaucetDisabled},
	{lock.ErrNonceUsed, response.CodeNonceUsed},
}

// writeError 业务错误原样返回错误信息，其他错误按服务器错误处理
func writeError(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			response.BusinessError(c, e.code, err.Error())
			return
		}
	}
	response.ServerError(c, err.Error())
}

// parseAmount 金额为链上最小单位的十进制字符串，空串视为 0
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return units.ParseUnits(s, 0)
}

func parseAddress(s string) (ledger.Address, bool) {
	if !common.IsHexAddress(s) {
		return ledger.Address{}, false
	}
	return common.HexToAddress(s), true
}

func (h *Handler) invocation(c *gin.Context, value *uint256.Int) service.Invocation {
	return service.Invocation{
		RequestID: c.GetString(ctxKeyRequestID),
		Caller:    callerFrom(c),
		Value:     value,
	}
}

func (h *Handler) amountView(v *uint256.Int) gin.H {
	return gin.H{
		"amount":         v.Dec(),
		"amount_display": units.FormatUnits(v, h.decimals),
	}
}

// ============================================================
// 账本写接口（需要签名）
// ============================================================

// PayRequest amount 是随调用附带的原生币
type PayRequest struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
}

// Pay 支付
// POST /api/v1/ledger/pay
func (h *Handler) Pay(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	value, err := parseAmount(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	if err := h.ledgerService.Pay(c.Request.Context(), h.invocation(c, value), req.OrderID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_id": req.OrderID,
		"amount":   value.Dec(),
	})
}

// WithdrawRequest value 是随调用附带的原生币，提现接口不接收，带了就会被拒绝
type WithdrawRequest struct {
	Amount string `json:"amount"`
	Value  string `json:"value"`
}

// Withdraw 所有者提取指定金额
// POST /api/v1/ledger/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		response.ParamError(c, "value 参数错误")
		return
	}

	if err := h.ledgerService.Withdraw(c.Request.Context(), h.invocation(c, value), amount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, h.amountView(amount))
}

// WithdrawAll 所有者提取全部余额，请求体可以为空
// POST /api/v1/ledger/withdraw-all
func (h *Handler) WithdrawAll(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		response.ParamError(c, "value 参数错误")
		return
	}

	held, err := h.ledgerService.WithdrawAll(c.Request.Context(), h.invocation(c, value))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, h.amountView(held))
}

// ============================================================
// 账本查询接口
// ============================================================

// GetPayment 查询支付记录
// GET /api/v1/ledger/payment?order_id=xxx
func (h *Handler) GetPayment(c *gin.Context) {
	rec, err := h.ledgerService.GetPayment(c.Request.Context(), c.Query("order_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	data := h.amountView(rec.Amount)
	data["order_id"] = rec.OrderID
	data["payer"] = rec.Payer.Hex()
	data["timestamp"] = rec.Timestamp
	response.Success(c, data)
}

// GetPaymentCount GET /api/v1/ledger/count
func (h *Handler) GetPaymentCount(c *gin.Context) {
	count, err := h.ledgerService.GetPaymentCount(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"count": count})
}

// TotalReceived GET /api/v1/ledger/total
func (h *Handler) TotalReceived(c *gin.Context) {
	total, err := h.ledgerService.TotalReceived(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, h.amountView(total))
}

// ListOrders 按支付顺序列出全部订单号
// GET /api/v1/ledger/orders
func (h *Handler) ListOrders(c *gin.Context) {
	ids, err := h.ledgerService.OrderIDs(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.Success(c, gin.H{"order_ids": ids})
}

// HeldBalance 账本当前持有的余额
// GET /api/v1/ledger/balance
func (h *Handler) HeldBalance(c *gin.Context) {
	held, err := h.ledgerService.HeldBalance(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	data := h.amountView(held)
	data["address"] = h.ledgerService.Ledger().Address().Hex()
	data["owner"] = h.ledgerService.Ledger().Owner().Hex()
	response.Success(c, data)
}

// ============================================================
// 钱包接口
// ============================================================

// GetBalance 查询地址余额
// GET /api/v1/wallet/balance?address=0x...
func (h *Handler) GetBalance(c *gin.Context) {
	addr, ok := parseAddress(c.Query("address"))
	if !ok {
		response.ParamError(c, "address 参数错误")
		return
	}

	bal, err := h.walletService.GetBalance(c.Request.Context(), addr)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	data := h.amountView(bal)
	data["address"] = addr.Hex()
	response.Success(c, data)
}

// RechargeRequest 水龙头充值
type RechargeRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// Recharge 充值接口（测试环境的水龙头）
// POST /api/v1/wallet/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	addr, ok := parseAddress(req.Address)
	if !ok {
		response.ParamError(c, "address 参数错误")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	if err := h.walletService.Recharge(c.Request.Context(), addr, amount); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "充值成功"})
}

// TransferRequest 从调用方地址转给 to
type TransferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// Transfer 地址间转账（需要签名）
// POST /api/v1/wallet/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	to, ok := parseAddress(req.To)
	if !ok {
		response.ParamError(c, "to 参数错误")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	if err := h.walletService.Transfer(c.Request.Context(), callerFrom(c), to, amount); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, h.amountView(amount))
}
