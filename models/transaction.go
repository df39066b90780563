// models/transaction.go
package models

import (
	"fmt"
	"time"
)

const TransactionTable = "mkt_transactions"

type Status string

const (
	StatusPending       Status = "pending"
	StatusAwaitingBuyer Status = "awaiting_buyer"
	StatusAccepted      Status = "accepted"
	StatusHandedOver    Status = "handed_over"
	StatusReceived      Status = "received"
	StatusReturned      Status = "returned"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
	StatusDisputed      Status = "disputed"
)

// 非终态：同一物品同一时刻最多一条
var ActiveStatuses = []Status{
	StatusPending,
	StatusAwaitingBuyer,
	StatusAccepted,
	StatusHandedOver,
	StatusReceived,
	StatusReturned,
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

type Action string

const (
	ActionCreate         Action = "create"
	ActionPropose        Action = "propose"
	ActionReject         Action = "reject"
	ActionBuyerReject    Action = "buyer_reject"
	ActionConfirm        Action = "confirm"
	ActionCancel         Action = "cancel"
	ActionHandoverSeller Action = "handover_seller"
	ActionHandoverBuyer  Action = "handover_buyer"
	ActionComplete       Action = "complete"
	ActionReturnBuyer    Action = "return_buyer"
	ActionReturnSeller   Action = "return_seller"
	ActionDispute        Action = "dispute"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Rule 是转移表中的一行
type Rule struct {
	From  []Status
	To    Status
	Roles []Role
	// 为 nil 时不限交易类型
	TypeOK func(TransactionType) bool
}

func lendOnly(t TransactionType) bool { return t == TypeLend }
func notLend(t TransactionType) bool  { return t != TypeLend }

var buyerOnly = []Role{RoleBuyer}
var sellerOnly = []Role{RoleSeller}

var transitions = map[Action]Rule{
	ActionPropose:        {From: []Status{StatusPending}, To: StatusAwaitingBuyer, Roles: sellerOnly},
	ActionReject:         {From: []Status{StatusPending}, To: StatusRejected, Roles: sellerOnly},
	ActionConfirm:        {From: []Status{StatusAwaitingBuyer}, To: StatusAccepted, Roles: buyerOnly},
	ActionBuyerReject:    {From: []Status{StatusAwaitingBuyer}, To: StatusRejected, Roles: buyerOnly},
	ActionCancel:         {From: []Status{StatusPending, StatusAwaitingBuyer}, To: StatusCancelled, Roles: buyerOnly},
	ActionHandoverSeller: {From: []Status{StatusAccepted}, To: StatusHandedOver, Roles: sellerOnly},
	ActionHandoverBuyer:  {From: []Status{StatusHandedOver}, To: StatusReceived, Roles: buyerOnly},
	ActionComplete:       {From: []Status{StatusReceived}, To: StatusCompleted, Roles: buyerOnly, TypeOK: notLend},
	ActionReturnBuyer:    {From: []Status{StatusReceived}, To: StatusReturned, Roles: buyerOnly, TypeOK: lendOnly},
	ActionReturnSeller:   {From: []Status{StatusReturned}, To: StatusCompleted, Roles: sellerOnly, TypeOK: lendOnly},
	ActionDispute:        {From: ActiveStatuses, To: StatusDisputed, Roles: []Role{RoleBuyer, RoleSeller}},
}

// 固定顺序，AllowedActions 的输出稳定
var actionOrder = []Action{
	ActionPropose, ActionReject, ActionConfirm, ActionBuyerReject, ActionCancel,
	ActionHandoverSeller, ActionHandoverBuyer, ActionComplete,
	ActionReturnBuyer, ActionReturnSeller, ActionDispute,
}

func LookupRule(a Action) (Rule, bool) {
	r, ok := transitions[a]
	return r, ok
}

func (r Rule) Allows(role Role) bool {
	for _, x := range r.Roles {
		if x == role {
			return true
		}
	}
	return false
}

func (r Rule) applies(t *Transaction) bool {
	if r.TypeOK != nil && !r.TypeOK(t.TransactionType) {
		return false
	}
	for _, s := range r.From {
		if s == t.Status {
			return true
		}
	}
	return false
}

type Transaction struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID          string          `gorm:"type:uuid;index;not null" json:"item_id"`
	BuyerID         string          `gorm:"type:uuid;index;not null" json:"buyer_id"`
	SellerID        string          `gorm:"type:uuid;index;not null" json:"seller_id"`
	TransactionType TransactionType `gorm:"size:16;not null" json:"transaction_type"`
	Status          Status          `gorm:"size:24;index;not null" json:"status"`

	PickupAt       *time.Time `json:"pickup_at,omitempty"`
	PickupLocation string     `gorm:"size:255" json:"pickup_location,omitempty"`
	DisputeReason  string     `gorm:"type:text" json:"dispute_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Transaction) TableName() string { return TransactionTable }

// RoleOf 返回 actor 在该交易中的身份
func (t *Transaction) RoleOf(actorID string) (Role, bool) {
	switch actorID {
	case t.BuyerID:
		return RoleBuyer, true
	case t.SellerID:
		return RoleSeller, true
	}
	return "", false
}

// Next 计算执行 a 之后的状态，不修改 t
func (t *Transaction) Next(a Action) (Status, error) {
	r, ok := transitions[a]
	if !ok || !r.applies(t) {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, t.Status)
	}
	return r.To, nil
}

// AllowedActions 按转移表列出 role 当前可执行的操作
func (t *Transaction) AllowedActions(role Role) []Action {
	out := []Action{}
	for _, a := range actionOrder {
		r := transitions[a]
		if r.Allows(role) && r.applies(t) {
			out = append(out, a)
		}
	}
	return out
}
