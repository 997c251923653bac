package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/api/handlers"
	"github.com/pawpal/petmail/api/middleware"
	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/services"
)

const AppSource = "petmail"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, cfg *config.Config, log logger.Logger) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(s, cfg.StorageConfig, log)
	Mount(r, apiHandlers, cfg.AppConfig)
}

// Mount attaches the handlers to the router. Split from RegisterRoutes so the
// route table can be exercised with fake services.
func Mount(r *gin.Engine, h *handlers.APIHandlers, appConfig *config.AppConfig) {
	r.GET("/health", handlers.HealthCheck)

	// inbound mail, authenticated per provider
	webhooks := r.Group("/webhooks")
	webhooks.Use(middleware.CustomContextMiddleware(AppSource))
	{
		webhooks.POST("/mailgun", h.Webhooks.MailgunInbound())
		webhooks.POST("/inbound",
			middleware.APIKeyMiddleware(middleware.APIKeyConfig{
				HeaderName:  middleware.InboundKeyHeader,
				ValidAPIKey: appConfig.InboundAPIKey,
			}),
			h.Webhooks.RawInbound(),
		)
	}

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: appConfig.APIKey,
	}))
	api.Use(middleware.UserIdMiddleware())
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		api.GET("/pets/:petId/approvals", h.Approvals.ListPending())

		approvals := api.Group("/approvals")
		{
			approvals.POST("/:id/approve", h.Approvals.Approve())
			approvals.POST("/:id/reject", h.Approvals.Reject())
		}

		documents := api.Group("/documents")
		{
			documents.GET("/url", h.Documents.SignedURL())
		}
	}
}
