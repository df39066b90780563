// controllers/transaction_controller.go
package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_marketplace/app"
	"Gin_postgres_redis_marketplace/gateway"
	"Gin_postgres_redis_marketplace/models"
	"Gin_postgres_redis_marketplace/response"

	"github.com/gin-gonic/gin"
)

type TransactionController struct{ *Srv }

func NewTransactionController(s *Srv) *TransactionController {
	return &TransactionController{Srv: s}
}

type createTxReq struct {
	ItemID string `json:"item_id" binding:"required"`
}

// 买方请求物品
func (tc *TransactionController) Create(c *gin.Context) {
	uid, ok := tc.actor(c)
	if !ok {
		return
	}
	var in createTxReq
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err)
		return
	}
	t, err := tc.Gateway.Create(c.Request.Context(), uid, in.ItemID)
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"transaction": t})
}

// 字段校验在 Gateway 完成，排在身份检查之后
type proposeReq struct {
	PickupAt       *time.Time `json:"pickup_at"`
	PickupLocation string     `json:"pickup_location"`
}

func (tc *TransactionController) Propose(c *gin.Context) {
	uid, ok := tc.actor(c)
	if !ok {
		return
	}
	var in proposeReq
	if !tc.bind(c, uid, models.ActionPropose, &in) {
		return
	}
	pin := gateway.ProposeInput{PickupLocation: in.PickupLocation}
	if in.PickupAt != nil {
		pin.PickupAt = *in.PickupAt
	}
	t, err := tc.Gateway.Propose(c.Request.Context(), uid, c.Param("id"), pin)
	if err != nil {
		tc.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"transaction": t})
}

type disputeReq struct {
	Reason string `json:"reason"`
}

func (tc *TransactionController) Dispute(c *gin.Context) {
	uid, ok := tc.actor(c)
	if !ok {
		return
	}
	var in disputeReq
	if !tc.bind(c, uid, models.ActionDispute, &in) {
		return
	}
	t, err := tc.Gateway.Dispute(c.Request.Context(), uid, c.Param("id"), in.Reason)
	if err != nil {
		tc.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"transaction": t})
}

// Act 返回处理无参数操作的 handler（reject、confirm、handover、complete、return、cancel）
func (tc *TransactionController) Act(a models.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := tc.actor(c)
		if !ok {
			return
		}
		t, err := tc.Gateway.Act(c.Request.Context(), uid, c.Param("id"), a)
		if err != nil {
			tc.fail(c, err)
			return
		}
		response.RespondOK(c, app.H{"transaction": t})
	}
}

func (tc *TransactionController) Get(c *gin.Context) {
	uid, ok := tc.actor(c)
	if !ok {
		return
	}
	t, actions, err := tc.Gateway.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		tc.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"transaction": t, "allowed_actions": actions})
}

func (tc *TransactionController) Mine(c *gin.Context) {
	uid, ok := tc.actor(c)
	if !ok {
		return
	}
	asBuyer, asSeller, err := tc.Gateway.Mine(c.Request.Context(), uid)
	if err != nil {
		tc.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"as_buyer": asBuyer, "as_seller": asSeller})
}

// 审计记录，最早在前
func (tc *TransactionController) Audit(c *gin.Context) {
	uid, ok := tc.actor(c)
	if !ok {
		return
	}
	entries, err := tc.Gateway.Audit(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		tc.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"audit": entries})
}

// bind 解析请求体；失败时先报告 404/403，再报 400
func (tc *TransactionController) bind(c *gin.Context, uid string, a models.Action, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if aerr := tc.Gateway.Authorize(c.Request.Context(), uid, c.Param("id"), a); aerr != nil {
		tc.fail(c, aerr)
		return false
	}
	response.BadRequest(c, err)
	return false
}
