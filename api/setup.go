package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zhixiangxue/chak-ai/api/handlers/chat"
	"github.com/zhixiangxue/chak-ai/internal/config"
	"github.com/zhixiangxue/chak-ai/internal/conversation"
)

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORS())

	registry := conversation.NewRegistry()
	chatHandler := chat.NewWSHandler(cfg, registry)

	RegisterRoutes(router, chatHandler)
	return router
}
