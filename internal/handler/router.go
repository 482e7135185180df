package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由，nonces 为 nil 时不做防重放检查
func SetupRouter(h *Handler, nonces NonceChecker) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	signed := SignatureAuthMiddleware(nonces)

	api := r.Group("/api/v1")
	{
		l := api.Group("/ledger")
		{
			l.POST("/pay", signed, h.Pay)
			l.POST("/withdraw", signed, h.Withdraw)
			l.POST("/withdraw-all", signed, h.WithdrawAll)

			l.GET("/payment", h.GetPayment)
			l.GET("/count", h.GetPaymentCount)
			l.GET("/total", h.TotalReceived)
			l.GET("/orders", h.ListOrders)
			l.GET("/balance", h.HeldBalance)
		}

		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.POST("/recharge", h.Recharge)
			wallet.POST("/transfer", signed, h.Transfer)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
