// controllers/srv.go
package controllers

import (
	"net/http"
	"strings"

	"Gin_postgres_redis_marketplace/app"
	"Gin_postgres_redis_marketplace/db"
	"Gin_postgres_redis_marketplace/gateway"
	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/response"

	"github.com/gin-gonic/gin"
)

type Srv struct {
	Repo      *db.Repo
	Gateway   *gateway.Gateway
	Sessions  app.SessionStore
	Log       *logger.Logger
	WebOrigin string
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:      a.Repo,
		Gateway:   a.Gateway,
		Sessions:  a.Sessions,
		Log:       a.Log.With("component", "controllers"),
		WebOrigin: a.Config.WebOrigin,
	}
}

// --- helpers ---

// actor 取当前登录用户；缺失时已写 401
func (s *Srv) actor(c *gin.Context) (string, bool) {
	uid, ok := app.UserID(c)
	if !ok {
		response.Unauthorized(c)
	}
	return uid, ok
}

func (s *Srv) fail(c *gin.Context, err error) { response.Fail(c, s.Log, err) }

// 清除业务会话 Cookie
func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.WebOrigin, "https://"),
	})
}
