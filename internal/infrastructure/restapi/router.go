package restapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RouterOptions configures the optional parts of the router.
type RouterOptions struct {
	// SwaggerSpecPath is served at /docs/swagger.yaml and rendered at /swagger/index.html.
	// Empty disables swagger.
	SwaggerSpecPath string
	Logger          *zap.Logger
}

// SetupRouter builds the gin engine with the API under /api/v1.
func SetupRouter(h *PortfolioHandler, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))
	router.Use(zapLoggerMiddleware(opts.Logger.Named("http")))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/networks", h.ListNetworks)
		v1.GET("/networks/:network/addresses/:address", h.GetPortfolio)
		v1.GET("/networks/:network/addresses/:address/transactions", h.GetTransactions)
		v1.GET("/networks/:network/tx/:hash", h.GetTransactionStatus)
		v1.GET("/networks/:network/gas", h.GetGasTracker)
		v1.GET("/networks/:network/contracts/:address/verification", h.GetContractVerification)
		v1.POST("/balances", h.GetBalances)
		v1.POST("/transactions", h.GetTransactionHistory)
	}

	if opts.SwaggerSpecPath != "" {
		router.StaticFile("/docs/swagger.yaml", opts.SwaggerSpecPath)
		swaggerURL := ginSwagger.URL("/docs/swagger.yaml")
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, swaggerURL))
	}

	return router
}

// zapLoggerMiddleware logs one line per request.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("Request served", fields...)
			return
		}
		logger.Debug("Request served", fields...)
	}
}
