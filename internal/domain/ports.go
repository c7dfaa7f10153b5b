package domain

import "context"

type FlowRepository interface {
	CreateChart(ctx context.Context, value Flowchart) (Flowchart, error)
	GetChartByID(ctx context.Context, id uint) (Flowchart, error)
	GetChartByName(ctx context.Context, name string) (Flowchart, error)
	ListCharts(ctx context.Context, filter ChartFilter, limit int) ([]ChartMeta, error)
	UpdateChartMeta(ctx context.Context, id uint, name, category, endDate string) (Flowchart, error)
	UpdateChartContent(ctx context.Context, id uint, nodes []Node, edges []Edge) (Flowchart, error)
	DeleteChart(ctx context.Context, id uint) error

	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	UpdateUser(ctx context.Context, value User) (User, error)
	DeleteUser(ctx context.Context, id uint) error

	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)

	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)

	CreateNotification(ctx context.Context, value Notification) (Notification, error)
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
}

// Notifier delivers an assignment email and returns the provider message id.
type Notifier interface {
	Send(ctx context.Context, mail Mail) (string, error)
}
