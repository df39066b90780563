package models

import (
	"time"
)

const UserTable = "portal_users"

// User 由外部登录服务写入；本服务只读 is_verified，更新 last_seen_at
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	DisplayName string `gorm:"size:255;not null" json:"displayName"`

	// 身份核验结果，由管理员审核流程设置
	IsVerified bool `gorm:"not null;default:false" json:"isVerified"`

	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string { return UserTable }
