package app

import (
	"context"
	"errors"

	"Gin_postgres_redis_marketplace/db"
	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/models"
	"Gin_postgres_redis_marketplace/response"
	"Gin_postgres_redis_marketplace/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// SessionStore 是 AuthRequired 与登出所需的会话操作
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

func AuthRequired(sess SessionStore, repo *db.Repo, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			response.Unauthorized(c)
			return
		}
		as, err := sess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				log.Warn("session lookup failed", "error", err)
			}
			response.Unauthorized(c)
			return
		}

		// 确认用户仍存在
		u, err := repo.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				_ = sess.Delete(c.Request.Context(), ck.Value)
			} else {
				log.Error("load session user", "user_id", as.UserID, "error", err)
			}
			response.Unauthorized(c)
			return
		}
		// 后续 handler 通过 "userID" 取 actor
		c.Set("userID", u.ID)
		c.Set("user", u)
		c.Next()
	}
}

// UserID 取 AuthRequired 放入的 actor
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return "", false
	}
	uid, _ := v.(string)
	return uid, uid != ""
}
