package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"payledger/internal/infrastructure/lock"
	"payledger/internal/ledger"
	"payledger/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

// NonceChecker 请求ID防重放，nil 表示不检查
type NonceChecker interface {
	Use(ctx context.Context, caller, requestID string) error
}

// SigningHash 调用方签名的内容：keccak256(METHOD \n PATH \n REQUEST_ID \n BODY)
func SigningHash(method, path, requestID string, body []byte) []byte {
	prefix := method + "\n" + path + "\n" + requestID + "\n"
	return crypto.Keccak256([]byte(prefix), body)
}

// SignatureAuthMiddleware 校验写接口的调用方身份
//
// 【关键点】
// 1. 从签名恢复出的地址必须等于 X-Caller
// 2. X-Request-ID 参与签名，且只能使用一次，截获的请求不能重放
// 3. 认证通过后调用方地址放进 gin.Context，后续只信任这个地址
func SignatureAuthMiddleware(nonces NonceChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerHex := c.GetHeader(HeaderCaller)
		requestID := c.GetHeader(HeaderRequestID)
		sigHex := c.GetHeader(HeaderSignature)

		if !common.IsHexAddress(callerHex) || requestID == "" || sigHex == "" {
			abortUnauthorized(c, "缺少签名信息")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortUnauthorized(c, "读取请求体失败")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sig, err := hexutil.Decode(normalizeHex(sigHex))
		if err != nil || len(sig) != crypto.SignatureLength {
			abortUnauthorized(c, "签名格式错误")
			return
		}
		// 兼容 v = 27/28 的签名
		if sig[crypto.RecoveryIDOffset] >= 27 {
			sig[crypto.RecoveryIDOffset] -= 27
		}

		hash := SigningHash(c.Request.Method, c.Request.URL.Path, requestID, body)
		pub, err := crypto.SigToPub(hash, sig)
		if err != nil {
			abortUnauthorized(c, "签名校验失败")
			return
		}

		caller := common.HexToAddress(callerHex)
		if crypto.PubkeyToAddress(*pub) != caller {
			log.Printf("[Auth] 签名地址不匹配: caller=%s, request=%s", caller.Hex(), requestID)
			abortUnauthorized(c, "签名地址不匹配")
			return
		}

		if nonces != nil {
			if err := nonces.Use(c.Request.Context(), caller.Hex(), requestID); err != nil {
				if errors.Is(err, lock.ErrNonceUsed) {
					c.Abort()
					response.BusinessError(c, response.CodeNonceUsed, err.Error())
					return
				}
				c.Abort()
				response.ServerError(c, err.Error())
				return
			}
		}

		c.Set(ctxKeyCaller, caller)
		c.Next()
	}
}

func normalizeHex(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "0x" + s[2:]
	}
	return "0x" + s
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Abort()
	response.Unauthorized(c, message)
}

// callerFrom 认证中间件写入的调用方地址
func callerFrom(c *gin.Context) ledger.Address {
	if v, ok := c.Get(ctxKeyCaller); ok {
		if addr, ok := v.(ledger.Address); ok {
			return addr
		}
	}
	return ledger.Address{}
}
