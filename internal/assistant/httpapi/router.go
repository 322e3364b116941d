// Package httpapi is the REST and websocket surface of the assistant.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	ChatHandler   *ChatHandler
	WSHandler     *WSHandler
	HealthHandler *HealthHandler

	AllowedOrigins  []string
	MaxRequestBytes int64
	MaxUploadBytes  int64
	ServiceName     string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "restoration-assistant"
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(AttachTraceContext())
	r.Use(RequestLogger(cfg.Log))
	r.Use(Recover(cfg.Log))
	r.Use(CORS(cfg.AllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Healthz)
		r.GET("/readyz", cfg.HealthHandler.Readyz)
	}

	v1 := r.Group("/v1")
	{
		if cfg.ChatHandler != nil {
			api := v1.Group("/")
			api.Use(LimitBody(cfg.MaxRequestBytes))
			api.POST("/chat/messages", cfg.ChatHandler.SendMessage)
			api.GET("/conversations/:id/messages", cfg.ChatHandler.ListMessages)
			api.GET("/conversations/:id/context", cfg.ChatHandler.GetContext)
			api.DELETE("/conversations/:id", cfg.ChatHandler.DeleteConversation)

			uploads := v1.Group("/")
			uploads.Use(LimitBody(cfg.MaxUploadBytes))
			uploads.POST("/conversations/:id/attachments", cfg.ChatHandler.UploadAttachment)
		}

		if cfg.WSHandler != nil {
			v1.GET("/chat/ws", cfg.WSHandler.Serve)
		}
	}
	return r
}
