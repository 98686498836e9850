package web

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func CorsConfig() cors.Config {
	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConf.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConf.MaxAge = 1 * 3600 // 1 hours
	return corsConf
}

func limiterMiddleWare(limit int64) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Hour,
		Limit:  limit,
	}
	store := memory.NewStore()
	instance := limiter.New(store, rate)
	middleware := mgin.NewMiddleware(instance)

	return middleware
}

func setupMiddlewares(r *gin.Engine, opts Options) {
	r.Use(limiterMiddleWare(opts.RateLimit))
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(cors.New(CorsConfig()))
	// the event stream needs the raw connection for the websocket upgrade
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{eventsPath})))
	r.Use(secure.New(secure.Config{
		STSSeconds:           31536000, // 1 year
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
		IsDevelopment:        opts.Development,
	}))
}
