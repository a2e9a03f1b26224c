package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/api/handlers"
	"gawangliliw/sellerhub/internal/api/middleware"
	"gawangliliw/sellerhub/internal/cache"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/metrics"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/storage"
)

// Services is every page controller the routers and workers share.
type Services struct {
	Account       services.IAccountService
	Sellers       services.ISellerService
	Messages      services.IMessageService
	Promotions    services.IPromotionService
	Orders        services.IOrderService
	Reviews       services.IReviewService
	Announcements services.IAnnouncementService
	Dashboard     services.IDashboardService
}

// NewServices wires the services onto their stores.
func NewServices(cfg *config.Config, db *mongo.Database, store *cache.Store, files storage.IFileStore, live services.Subscriber, m *metrics.Metrics) (*Services, error) {
	account, err := services.NewAccountService(db, cfg, store)
	if err != nil {
		return nil, err
	}
	sellers := services.NewSellerService(db, cfg, files)
	orders := services.NewOrderService(db, live)
	return &Services{
		Account:       account,
		Sellers:       sellers,
		Messages:      services.NewMessageService(db, cfg, files, live),
		Promotions:    services.NewPromotionService(db),
		Orders:        orders,
		Reviews:       services.NewReviewService(db),
		Announcements: services.NewAnnouncementService(db),
		Dashboard:     services.NewDashboardService(cfg, orders, sellers, store, files, m),
	}, nil
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(ctx context.Context, cfg *config.Config, svc *Services, taskClient handlers.IAsynqClient, lookup handlers.ReportLookup, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if m != nil {
		r.Use(m.GinMiddleware())
	}
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.NewRateLimiterMiddleware(ctx, cfg).Limit())

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, taskClient, svc.Account, svc.Sellers, svc.Messages, svc.Promotions, svc.Orders, svc.Reviews)
	sellerHandler := handlers.NewRestSellerHandler(cfg, svc.Account, svc.Sellers, taskClient)
	messageHandler := handlers.NewRestMessageHandler(cfg, svc.Messages, taskClient)
	storeHandler := handlers.NewRestStoreHandler(cfg, svc.Promotions, svc.Orders, svc.Reviews, svc.Announcements)
	dashboardHandler := handlers.NewRestDashboardHandler(svc.Dashboard, lookup)

	v1 := r.Group("/v1")
	{
		// Public; the JSON API checks auth per method.
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(svc.Account))
		{
			authRequired.GET("/me", sellerHandler.Me)
			authRequired.GET("/seller/profile", sellerHandler.GetProfile)
			authRequired.GET("/seller/followers/count", sellerHandler.FollowerCount)
			authRequired.POST("/seller/permits/:kind", sellerHandler.UploadPermit)
			authRequired.POST("/seller/payment-methods/:provider/qr", sellerHandler.UploadPaymentQR)
			authRequired.GET("/files/url", sellerHandler.FileURL)

			authRequired.GET("/conversations", messageHandler.ListConversations)
			authRequired.GET("/conversations/:id/messages", messageHandler.ListMessages)
			authRequired.POST("/conversations/:id/attachments", messageHandler.UploadAttachment)

			authRequired.GET("/promotions", storeHandler.ListPromotions)
			authRequired.GET("/orders", storeHandler.ListOrders)
			authRequired.GET("/reviews", storeHandler.ListReviews)
			authRequired.GET("/reviews/summary", storeHandler.ReviewSummary)
			authRequired.GET("/announcements", storeHandler.ListAnnouncements)

			authRequired.GET("/dashboard/sales", dashboardHandler.Sales)
			authRequired.GET("/dashboard/export", dashboardHandler.Export)
			authRequired.GET("/dashboard/reports/:task_id", dashboardHandler.ReportStatus)

			authRequired.GET("/stream/conversations/:id", messageHandler.StreamConversation)
			authRequired.GET("/stream/inbox", messageHandler.StreamInbox)
			authRequired.GET("/stream/orders", storeHandler.StreamOrders)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service engine: shutdown,
// account seeding and the metrics scrape endpoint.
func SetupServiceRouter(cfg *config.Config, account services.IAccountService, m *metrics.Metrics, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Log.Info("service_shutdown_requested")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Log.Warn("shutdown_already_signalled")
			}
		case "createUser":
			var args []string // [email, password, role]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 3 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [email, password, role]"})
				return
			}
			role := models.Role(args[2])
			if role != models.RoleSeller && role != models.RoleStaff {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("Unknown role: %s", args[2])})
				return
			}
			user, err := account.Register(c.Request.Context(), args[0], args[1], role)
			if err != nil {
				logger.Log.Warn("service_create_user_failed", zap.Error(err))
				c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
