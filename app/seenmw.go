// app/seenmw.go
package app

import (
	"time"

	"Gin_postgres_redis_marketplace/db"
	"Gin_postgres_redis_marketplace/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen 每个用户在 throttle 内最多写一次 last_seen_at
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}

		key := "user:lastseen:" + uid
		if ok, err := rdb.SetNX(c.Request.Context(), key, "1", throttle).Result(); err != nil {
			log.Debug("lastseen throttle", "error", err)
		} else if ok {
			if err := repo.TouchUserSeen(c.Request.Context(), uid); err != nil {
				log.Warn("touch last seen", "user_id", uid, "error", err)
			}
		}
		c.Next()
	}
}

// RequestLogger 每个请求一行访问日志
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		uid, _ := UserID(c)
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"user_id", uid,
		)
	}
}
