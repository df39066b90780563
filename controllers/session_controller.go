package controllers

import (
	"net/http"

	"Gin_postgres_redis_marketplace/app"
	"Gin_postgres_redis_marketplace/response"

	"github.com/gin-gonic/gin"
)

type SessionController struct{ *Srv }

func NewSessionController(s *Srv) *SessionController { return &SessionController{Srv: s} }

// whoami：返回当前用户
func (sc *SessionController) WhoAmI(c *gin.Context) {
	uid, ok := sc.actor(c)
	if !ok {
		return
	}
	u, err := sc.Repo.FindUserByID(c.Request.Context(), uid)
	if err != nil {
		sc.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"user": u})
}

// 登出：删 Redis，会话 Cookie 置空
func (sc *SessionController) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		if err := sc.Sessions.Delete(c.Request.Context(), ck.Value); err != nil {
			sc.Log.Warn("delete session", "error", err)
		}
	}
	sc.clearAppCookie(c.Writer)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
