package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/assistmate/assistmate-backend/internal/logger"
)

// RateLimitMiddleware ограничивает число запросов с одного IP.
// При заданном redisURL лимиты считаются в Redis и переживают рестарт;
// иначе используется память процесса.
func RateLimitMiddleware(limit int64, period time.Duration, redisURL string) gin.HandlerFunc {
	if limit <= 0 {
		limit = 60
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	var store limiter.Store
	if redisURL != "" {
		options, err := redis.ParseURL(redisURL)
		if err == nil {
			client := redis.NewClient(options)
			store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
				Prefix: "assistmate:ratelimit",
			})
			if err != nil {
				store = nil
			}
		}
		if store == nil && logger.Log != nil {
			logger.Log.Warn("rate limit: redis недоступен, используем память процесса")
		}
	}
	if store == nil {
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)

	return func(c *gin.Context) {
		key := c.ClientIP()
		context, err := instance.Get(c, key)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", context.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", context.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", context.Reset))

		if context.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "слишком много запросов, попробуйте позже",
			})
			return
		}

		c.Next()
	}
}
