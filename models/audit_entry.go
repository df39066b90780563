package models

import "time"

const AuditTable = "mkt_transaction_audit"

// AuditEntry 每次状态转移写一条，只追加不修改
type AuditEntry struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"seq"`
	TransactionID string    `gorm:"type:uuid;index;not null" json:"transaction_id"`
	Action        Action    `gorm:"size:32;not null" json:"action"`
	FromStatus    Status    `gorm:"size:24" json:"from_status"` // create 时为空
	ToStatus      Status    `gorm:"size:24;not null" json:"to_status"`
	ActorID       string    `gorm:"type:uuid;not null" json:"actor_id"`
	Notes         *string   `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (AuditEntry) TableName() string { return AuditTable }
