package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 账本业务错误码，和 ledger 包的错误一一对应
const (
	CodeInvalidAmount          = 1001
	CodeInvalidOrderID         = 1002
	CodeDuplicateOrder         = 1003
	CodeOrderNotFound          = 1004
	CodeNotOwner               = 1005
	CodeInsufficientBalance    = 1006
	CodeNothingToWithdraw      = 1007
	CodeTransferFailed         = 1008
	CodeReentrantCall          = 1009
	CodeDirectTransferRejected = 1010
)

// 执行环境错误码
const (
	CodeInsufficientFunds = 1101
	CodeOverflow          = 1102
	CodeBusy              = 1103
	CodeFaucetDisabled    = 1104
	CodeNonceUsed         = 1105
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, CodeUnauthorized, message)
}
