// controllers/item_controller.go
package controllers

import (
	"Gin_postgres_redis_marketplace/app"
	"Gin_postgres_redis_marketplace/models"
	"Gin_postgres_redis_marketplace/response"

	"github.com/gin-gonic/gin"
)

type ItemController struct{ *Srv }

func NewItemController(s *Srv) *ItemController { return &ItemController{Srv: s} }

type createItemReq struct {
	Title           string                 `json:"title" binding:"required,max=200"`
	Description     string                 `json:"description"`
	Category        string                 `json:"category" binding:"required,max=80"`
	TransactionType models.TransactionType `json:"transaction_type" binding:"required"`
	PriceCents      *int64                 `json:"price_cents"`
	MunicipalityID  string                 `json:"municipality_id" binding:"required"`
}

// 上架：物主为当前用户
func (ic *ItemController) CreateItem(c *gin.Context) {
	uid, ok := ic.actor(c)
	if !ok {
		return
	}
	var in createItemReq
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err)
		return
	}
	it := &models.Item{
		OwnerID:         uid,
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		TransactionType: in.TransactionType,
		PriceCents:      in.PriceCents,
		MunicipalityID:  in.MunicipalityID,
	}
	if err := ic.Repo.CreateItem(c.Request.Context(), it); err != nil {
		ic.fail(c, err)
		return
	}
	response.RespondCreated(c, app.H{"item": it})
}

// 列表：只含可请求的物品
func (ic *ItemController) ListItems(c *gin.Context) {
	f := models.ItemFilter{
		MunicipalityID: c.Query("municipality_id"),
		Category:       c.Query("category"),
		Type:           models.TransactionType(c.Query("type")),
	}
	if f.Type != "" && !f.Type.Valid() {
		ic.fail(c, models.Invalid("type", "must be donate, lend or sell"))
		return
	}
	items, err := ic.Repo.ListAvailable(c.Request.Context(), f)
	if err != nil {
		ic.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"items": items})
}

func (ic *ItemController) GetItem(c *gin.Context) {
	it, err := ic.Repo.FindItemByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		ic.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"item": it})
}

// 我的物品，附带进行中的交易
func (ic *ItemController) ListMine(c *gin.Context) {
	uid, ok := ic.actor(c)
	if !ok {
		return
	}
	rows, err := ic.Repo.ListOwnerItems(c.Request.Context(), uid)
	if err != nil {
		ic.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"items": rows})
}

// 下架
func (ic *ItemController) RemoveItem(c *gin.Context) {
	uid, ok := ic.actor(c)
	if !ok {
		return
	}
	it, err := ic.Repo.RemoveItem(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		ic.fail(c, err)
		return
	}
	response.RespondOK(c, app.H{"item": it})
}
