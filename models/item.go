// models/item.go
package models

import (
	"strings"
	"time"
)

const ItemTable = "mkt_items"

type TransactionType string

const (
	TypeDonate TransactionType = "donate"
	TypeLend   TransactionType = "lend"
	TypeSell   TransactionType = "sell"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeDonate, TypeLend, TypeSell:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemAvailable          ItemStatus = "available"
	ItemPendingTransaction ItemStatus = "pending_transaction"
	ItemUnavailable        ItemStatus = "unavailable"
	ItemRemoved            ItemStatus = "removed"
)

type Item struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID         string          `gorm:"type:uuid;index;not null" json:"owner_id"`
	Title           string          `gorm:"size:200;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description,omitempty"`
	Category        string          `gorm:"size:80;index;not null" json:"category"`
	TransactionType TransactionType `gorm:"size:16;index;not null" json:"transaction_type"`
	PriceCents      *int64          `json:"price_cents,omitempty"` // 仅 sell
	MunicipalityID  string          `gorm:"size:64;index;not null" json:"municipality_id"`
	// 只能通过 Catalog 的 MarkPending/Release 等改变
	Status    ItemStatus `gorm:"size:24;index;not null;default:'available'" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Item) TableName() string { return ItemTable }

// Validate 检查新建 listing 的字段
func (it *Item) Validate() error {
	if strings.TrimSpace(it.Title) == "" {
		return Invalid("title", "required")
	}
	if strings.TrimSpace(it.Category) == "" {
		return Invalid("category", "required")
	}
	if strings.TrimSpace(it.MunicipalityID) == "" {
		return Invalid("municipality_id", "required")
	}
	if !it.TransactionType.Valid() {
		return Invalid("transaction_type", "must be one of donate, lend, sell")
	}
	if it.TransactionType == TypeSell {
		if it.PriceCents == nil || *it.PriceCents <= 0 {
			return Invalid("price_cents", "required and positive for sell listings")
		}
	} else if it.PriceCents != nil {
		return Invalid("price_cents", "only allowed for sell listings")
	}
	return nil
}

// ItemFilter 对应 listAvailable 的可选过滤条件
type ItemFilter struct {
	MunicipalityID string
	Category       string
	Type           TransactionType
}
