package routes

import (
	"net/http"
	"time"

	"Gin_postgres_redis_marketplace/app"
	"Gin_postgres_redis_marketplace/controllers"
	"Gin_postgres_redis_marketplace/models"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	sc := controllers.NewSessionController(s)
	itemCtl := controllers.NewItemController(s)
	txCtl := controllers.NewTransactionController(s)

	// 复用的中间件
	authed := []gin.HandlerFunc{app.AuthRequired(a.Sessions, a.Repo, a.Log)}
	if a.RDB != nil {
		authed = append(authed, app.TouchLastSeen(a.Repo, a.RDB, 5*time.Minute, a.Log))
	}

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	// ------------------------------
	// 会话（登录由外部服务完成）
	// ------------------------------
	sess := r.Group("/session")
	{
		sess.POST("/logout", sc.Logout)
		sess.Group("", authed...).GET("/whoami", sc.WhoAmI)
	}

	api := r.Group("/api", authed...)

	// ------------------------------
	// 物品目录
	// ------------------------------
	items := api.Group("/items")
	{
		items.POST("", itemCtl.CreateItem)
		items.GET("", itemCtl.ListItems) // ?municipality_id=&category=&type=
		items.GET("/mine", itemCtl.ListMine)
		items.GET("/:id", itemCtl.GetItem)
		items.DELETE("/:id", itemCtl.RemoveItem)
	}

	// ------------------------------
	// 交易
	// ------------------------------
	txs := api.Group("/transactions")
	{
		txs.POST("", txCtl.Create)
		txs.GET("/mine", txCtl.Mine)
		txs.GET("/:id", txCtl.Get)
		txs.GET("/:id/audit", txCtl.Audit)

		txs.POST("/:id/propose", txCtl.Propose)
		txs.POST("/:id/dispute", txCtl.Dispute)
		txs.POST("/:id/reject", txCtl.Act(models.ActionReject))
		txs.POST("/:id/buyer-reject", txCtl.Act(models.ActionBuyerReject))
		txs.POST("/:id/confirm", txCtl.Act(models.ActionConfirm))
		txs.POST("/:id/cancel", txCtl.Act(models.ActionCancel))
		txs.POST("/:id/handover-seller", txCtl.Act(models.ActionHandoverSeller))
		txs.POST("/:id/handover-buyer", txCtl.Act(models.ActionHandoverBuyer))
		txs.POST("/:id/complete", txCtl.Act(models.ActionComplete))
		txs.POST("/:id/return-buyer", txCtl.Act(models.ActionReturnBuyer))
		txs.POST("/:id/return-seller", txCtl.Act(models.ActionReturnSeller))
	}
}
