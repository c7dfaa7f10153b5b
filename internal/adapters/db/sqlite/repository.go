package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/flowboard/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type FlowRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

func NewFlowRepository(db *gorm.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrNameTaken
	}
	return err
}

func encodeNodes(nodes []domain.Node) (datatypes.JSON, error) {
	if nodes == nil {
		nodes = []domain.Node{}
	}
	raw, err := json.Marshal(nodes)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func encodeEdges(edges []domain.Edge) (datatypes.JSON, error) {
	if edges == nil {
		edges = []domain.Edge{}
	}
	raw, err := json.Marshal(edges)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func chartFromModel(m FlowchartModel) (domain.Flowchart, error) {
	nodes := make([]domain.Node, 0)
	if len(m.Nodes) > 0 {
		if err := json.Unmarshal(m.Nodes, &nodes); err != nil {
			return domain.Flowchart{}, err
		}
	}
	edges := make([]domain.Edge, 0)
	if len(m.Edges) > 0 {
		if err := json.Unmarshal(m.Edges, &edges); err != nil {
			return domain.Flowchart{}, err
		}
	}
	return domain.Flowchart{
		ID:        m.ID,
		Name:      m.Name,
		Category:  m.Category,
		EndDate:   m.EndDate,
		Nodes:     nodes,
		Edges:     edges,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func (r *FlowRepository) CreateChart(ctx context.Context, value domain.Flowchart) (domain.Flowchart, error) {
	nodes, err := encodeNodes(value.Nodes)
	if err != nil {
		return domain.Flowchart{}, err
	}
	edges, err := encodeEdges(value.Edges)
	if err != nil {
		return domain.Flowchart{}, err
	}
	m := FlowchartModel{Name: strings.TrimSpace(value.Name), Category: value.Category, EndDate: value.EndDate, Nodes: nodes, Edges: edges}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Flowchart{}, mapError(err)
	}
	return chartFromModel(m)
}

func (r *FlowRepository) GetChartByID(ctx context.Context, id uint) (domain.Flowchart, error) {
	var m FlowchartModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Flowchart{}, mapError(err)
	}
	return chartFromModel(m)
}

func (r *FlowRepository) GetChartByName(ctx context.Context, name string) (domain.Flowchart, error) {
	var m FlowchartModel
	if err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&m).Error; err != nil {
		return domain.Flowchart{}, mapError(err)
	}
	return chartFromModel(m)
}

func (r *FlowRepository) ListCharts(ctx context.Context, filter domain.ChartFilter, limit int) ([]domain.ChartMeta, error) {
	q := r.db.WithContext(ctx).Model(&FlowchartModel{})
	if strings.TrimSpace(filter.Category) != "" {
		q = q.Where("category = ?", strings.TrimSpace(filter.Category))
	}
	if strings.TrimSpace(filter.EndDate) != "" {
		q = q.Where("end_date = ?", strings.TrimSpace(filter.EndDate))
	} else {
		if strings.TrimSpace(filter.EndDateFrom) != "" {
			q = q.Where("end_date >= ?", strings.TrimSpace(filter.EndDateFrom))
		}
		if strings.TrimSpace(filter.EndDateTo) != "" {
			q = q.Where("end_date <= ?", strings.TrimSpace(filter.EndDateTo))
		}
	}
	rows := make([]FlowchartModel, 0)
	if err := q.Select("id", "name", "category", "end_date", "created_at", "updated_at").
		Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ChartMeta, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ChartMeta{ID: m.ID, Name: m.Name, Category: m.Category, EndDate: m.EndDate, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt})
	}
	return result, nil
}

// UpdateChartMeta renames and retags a chart in place. A single UPDATE keeps
// the rename atomic, so readers never observe a missing or duplicated chart.
func (r *FlowRepository) UpdateChartMeta(ctx context.Context, id uint, name, category, endDate string) (domain.Flowchart, error) {
	res := r.db.WithContext(ctx).Model(&FlowchartModel{}).Where("id = ?", id).Updates(map[string]any{
		"name":     strings.TrimSpace(name),
		"category": category,
		"end_date": endDate,
	})
	if res.Error != nil {
		return domain.Flowchart{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Flowchart{}, domain.ErrNotFound
	}
	return r.GetChartByID(ctx, id)
}

func (r *FlowRepository) UpdateChartContent(ctx context.Context, id uint, nodes []domain.Node, edges []domain.Edge) (domain.Flowchart, error) {
	rawNodes, err := encodeNodes(nodes)
	if err != nil {
		return domain.Flowchart{}, err
	}
	rawEdges, err := encodeEdges(edges)
	if err != nil {
		return domain.Flowchart{}, err
	}
	res := r.db.WithContext(ctx).Model(&FlowchartModel{}).Where("id = ?", id).Updates(map[string]any{
		"nodes": rawNodes,
		"edges": rawEdges,
	})
	if res.Error != nil {
		return domain.Flowchart{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Flowchart{}, domain.ErrNotFound
	}
	return r.GetChartByID(ctx, id)
}

func (r *FlowRepository) DeleteChart(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&FlowchartModel{}, id)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Role:         domain.Role(m.Role),
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (r *FlowRepository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{
		Name:         strings.TrimSpace(value.Name),
		Email:        strings.ToLower(strings.TrimSpace(value.Email)),
		Role:         defaultString(string(value.Role), string(domain.RoleEmployee)),
		PasswordHash: value.PasswordHash,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, mapError(err)
	}
	return userFromModel(m), nil
}

func (r *FlowRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (r *FlowRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, mapError(err)
	}
	return userFromModel(m), nil
}

func (r *FlowRepository) GetUserByName(ctx context.Context, name string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Order("id ASC").First(&m).Error; err != nil {
		return domain.User{}, mapError(err)
	}
	return userFromModel(m), nil
}

func (r *FlowRepository) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, mapError(err)
	}
	return userFromModel(m), nil
}

func (r *FlowRepository) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("email LIKE ? OR name LIKE ?", like, like)
	}
	rows := make([]UserModel, 0)
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		result = append(result, userFromModel(m))
	}
	return result, nil
}

func (r *FlowRepository) UpdateUser(ctx context.Context, value domain.User) (domain.User, error) {
	updates := map[string]any{
		"name":  strings.TrimSpace(value.Name),
		"email": strings.ToLower(strings.TrimSpace(value.Email)),
		"role":  string(value.Role),
	}
	if value.PasswordHash != "" {
		updates["password_hash"] = value.PasswordHash
	}
	res := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", value.ID).Updates(updates)
	if res.Error != nil {
		return domain.User{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.User{}, domain.ErrNotFound
	}
	return r.GetUserByID(ctx, value.ID)
}

func (r *FlowRepository) DeleteUser(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&UserModel{}, id)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *FlowRepository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, mapError(err)
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FlowRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, mapError(err)
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FlowRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
}

func (r *FlowRepository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, mapError(err)
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FlowRepository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, mapError(err)
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FlowRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorUserID: value.ActorUserID, Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID, Metadata: value.Metadata}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *FlowRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	type row struct {
		ID             uint
		ActorUserID    *uint
		ActorUserEmail string
		Action         string
		TargetType     string
		TargetID       *uint
		Metadata       string
		CreatedAt      time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_user_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
ORDER BY a.id DESC
LIMIT ?
`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditRecord{
			ID:             m.ID,
			ActorUserID:    m.ActorUserID,
			ActorUserEmail: m.ActorUserEmail,
			Action:         m.Action,
			TargetType:     m.TargetType,
			TargetID:       m.TargetID,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
	}
	return result, nil
}

func (r *FlowRepository) CreateNotification(ctx context.Context, value domain.Notification) (domain.Notification, error) {
	m := NotificationModel{
		Recipients: value.Recipients,
		TaskName:   value.TaskName,
		ChartName:  value.ChartName,
		AssignedBy: value.AssignedBy,
		MessageID:  value.MessageID,
		SendError:  value.SendError,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Notification{}, mapError(err)
	}
	return domain.Notification{
		ID:         m.ID,
		Recipients: m.Recipients,
		TaskName:   m.TaskName,
		ChartName:  m.ChartName,
		AssignedBy: m.AssignedBy,
		MessageID:  m.MessageID,
		SendError:  m.SendError,
		CreatedAt:  m.CreatedAt,
	}, nil
}

func (r *FlowRepository) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows := make([]NotificationModel, 0)
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Notification, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Notification{
			ID:         m.ID,
			Recipients: m.Recipients,
			TaskName:   m.TaskName,
			ChartName:  m.ChartName,
			AssignedBy: m.AssignedBy,
			MessageID:  m.MessageID,
			SendError:  m.SendError,
			CreatedAt:  m.CreatedAt,
		})
	}
	return result, nil
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}

	return input
}
