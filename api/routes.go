package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhixiangxue/chak-ai/api/handlers/chat"
	"github.com/zhixiangxue/chak-ai/internal/provider"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, chatHandler *chat.WSHandler) {
	// 健康检查
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "chak-ai",
			"providers": provider.KnownProviders(),
		})
	})

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 对话 WebSocket
	router.GET("/ws/conversation", chatHandler.Connect)
}
