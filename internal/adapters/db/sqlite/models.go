package sqlite

import (
	"time"

	"gorm.io/datatypes"
)

type FlowchartModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex"`
	Category  string `gorm:"not null;default:'';index"`
	EndDate   string `gorm:"not null;default:'';index"`
	Nodes     datatypes.JSON
	Edges     datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FlowchartModel) TableName() string { return "flowcharts" }

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null;index"`
	Email        string `gorm:"not null;uniqueIndex"`
	Role         string `gorm:"not null;default:'employee'"`
	PasswordHash string `gorm:"not null;default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type AuditLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null;index"`
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }

type NotificationModel struct {
	ID         uint   `gorm:"primaryKey"`
	Recipients string `gorm:"not null"`
	TaskName   string `gorm:"not null"`
	ChartName  string `gorm:"not null"`
	AssignedBy string `gorm:"not null;default:''"`
	MessageID  string `gorm:"not null;default:''"`
	SendError  string `gorm:"not null;default:''"`
	CreatedAt  time.Time
}

func (NotificationModel) TableName() string { return "notifications" }
