package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	mathrand "math/rand"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/flowboard/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type FlowService struct {
	repo     domain.FlowRepository
	notifier domain.Notifier
	broker   *SnapshotBroker
}

func NewFlowService(repo domain.FlowRepository, notifier domain.Notifier) *FlowService {
	return &FlowService{
		repo:     repo,
		notifier: notifier,
		broker:   NewSnapshotBroker(),
	}
}

// ResolveRole maps an email to a role for gating editor mutations. A missing
// user or a lookup failure resolves to employee so the page still renders;
// the downgrade is logged because it otherwise looks like a permissions bug.
func (s *FlowService) ResolveRole(ctx context.Context, email string) domain.Role {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		log.Printf("role resolve: defaulting %q to employee: %v", email, err)
		return domain.RoleEmployee
	}
	if _, ok := domain.ParseRole(string(u.Role)); !ok {
		log.Printf("role resolve: user %q has unknown role %q, defaulting to employee", email, u.Role)
		return domain.RoleEmployee
	}
	return u.Role
}

func (s *FlowService) BootstrapAdmin(ctx context.Context, name, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return errors.New("bootstrap admin email and password are required")
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	u, err := s.repo.CreateUser(ctx, domain.User{
		Name:         defaultString(name, "Administrator"),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	return s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.bootstrap_admin", TargetType: "user", TargetID: &u.ID, Metadata: "initial admin created"})
}

func (s *FlowService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.login.session", TargetType: "user", TargetID: &u.ID, Metadata: "session login"})
	return u, plain, nil
}

func (s *FlowService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.login.api_token", TargetType: "user", TargetID: &u.ID, Metadata: "api token issued"})
	return u, plain, nil
}

func (s *FlowService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, errors.New("unauthorized")
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, errors.New("session expired")
	}

	return s.identityByUserID(ctx, session.UserID)
}

func (s *FlowService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, errors.New("unauthorized")
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.Identity{}, errors.New("token expired")
	}

	return s.identityByUserID(ctx, apit.UserID)
}

func (s *FlowService) LogoutSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashToken(token))
}

func (s *FlowService) WriteAudit(ctx context.Context, actorUserID *uint, action, targetType string, targetID *uint, metadata string) {
	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
}

func (s *FlowService) ListCharts(ctx context.Context, filter domain.ChartFilter, limit int) ([]domain.ChartMeta, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListCharts(ctx, filter, limit)
}

func (s *FlowService) CreateChart(ctx context.Context, name, category, endDate string) (domain.Flowchart, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Flowchart{}, errors.New("name is required")
	}
	return s.repo.CreateChart(ctx, domain.Flowchart{Name: name, Category: category, EndDate: endDate})
}

func (s *FlowService) GetChart(ctx context.Context, id uint) (domain.Flowchart, error) {
	if id == 0 {
		return domain.Flowchart{}, errors.New("chart id is required")
	}
	return s.repo.GetChartByID(ctx, id)
}

// OpenChartByName loads a chart for editing, creating an empty one when the
// name is unknown so that opening a fresh editor never 404s.
func (s *FlowService) OpenChartByName(ctx context.Context, name string) (domain.Flowchart, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Flowchart{}, errors.New("name is required")
	}
	chart, err := s.repo.GetChartByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return s.repo.CreateChart(ctx, domain.Flowchart{Name: name})
	}
	return chart, err
}

func (s *FlowService) UpdateChartMeta(ctx context.Context, id uint, name, category, endDate string) (domain.Flowchart, error) {
	if id == 0 {
		return domain.Flowchart{}, errors.New("chart id is required")
	}
	if strings.TrimSpace(name) == "" {
		return domain.Flowchart{}, errors.New("name is required")
	}
	chart, err := s.repo.UpdateChartMeta(ctx, id, name, category, endDate)
	if err != nil {
		return domain.Flowchart{}, err
	}
	s.publish(chart)
	return chart, nil
}

func (s *FlowService) DuplicateChart(ctx context.Context, id uint) (domain.Flowchart, error) {
	src, err := s.GetChart(ctx, id)
	if err != nil {
		return domain.Flowchart{}, err
	}
	return s.repo.CreateChart(ctx, domain.Flowchart{
		Name:     src.Name + "-Copy",
		Category: src.Category,
		EndDate:  src.EndDate,
		Nodes:    src.Nodes,
		Edges:    src.Edges,
	})
}

func (s *FlowService) DeleteChart(ctx context.Context, id uint) error {
	chart, err := s.GetChart(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteChart(ctx, id); err != nil {
		return err
	}
	s.broker.Publish(domain.Snapshot{ChartID: chart.ID, Name: chart.Name, Gone: true})
	return nil
}

// Watch subscribes to the snapshot stream of a chart and immediately seeds
// the channel with the current state.
func (s *FlowService) Watch(ctx context.Context, id uint) (<-chan domain.Snapshot, func(), error) {
	chart, err := s.GetChart(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.broker.Subscribe(id, snapshotOf(chart))
	return ch, cancel, nil
}

func (s *FlowService) AddNode(ctx context.Context, actor domain.Identity, chartID uint) (domain.Node, error) {
	if err := s.requireEditor(actor); err != nil {
		return domain.Node{}, err
	}
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return domain.Node{}, err
	}

	node := domain.Node{
		ID: uuid.NewString(),
		Data: domain.NodeData{
			Label:      "New Task",
			Status:     domain.StatusTodo,
			AssignedTo: []string{},
		},
		Position: domain.Position{X: mathrand.Float64() * 400, Y: mathrand.Float64() * 400},
		Style:    styleForStatus(domain.StatusTodo),
	}

	chart, err = s.repo.UpdateChartContent(ctx, chartID, append(chart.Nodes, node), chart.Edges)
	if err != nil {
		return domain.Node{}, err
	}
	s.publish(chart)
	s.WriteAudit(ctx, actorID(actor), "chart.node.add", "flowchart", &chartID, node.ID)
	return node, nil
}

func (s *FlowService) ConnectNodes(ctx context.Context, actor domain.Identity, chartID uint, source, target string) (domain.Edge, error) {
	if err := s.requireEditor(actor); err != nil {
		return domain.Edge{}, err
	}
	if source == "" || target == "" {
		return domain.Edge{}, errors.New("source and target are required")
	}
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return domain.Edge{}, err
	}

	edge := domain.Edge{
		ID:        uuid.NewString(),
		Source:    source,
		Target:    target,
		MarkerEnd: "arrowclosed",
		Type:      "smoothstep",
	}

	chart, err = s.repo.UpdateChartContent(ctx, chartID, chart.Nodes, append(chart.Edges, edge))
	if err != nil {
		return domain.Edge{}, err
	}
	s.publish(chart)
	s.WriteAudit(ctx, actorID(actor), "chart.edge.connect", "flowchart", &chartID, edge.ID)
	return edge, nil
}

// UpdateNode edits a task in place. Employees may move a task through its
// statuses but label and assignee changes are dropped for them, matching the
// editor surface where those inputs are disabled. A grown assignee set fires
// one notification covering every newly assigned user.
func (s *FlowService) UpdateNode(ctx context.Context, actor domain.Identity, chartID uint, nodeID, label string, status domain.TaskStatus, assignedTo []string) (domain.Node, error) {
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return domain.Node{}, err
	}

	idx := -1
	for i, n := range chart.Nodes {
		if n.ID == nodeID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.Node{}, domain.ErrNotFound
	}

	node := chart.Nodes[idx]
	previous := node.Data.AssignedTo

	if actor.User.Role == domain.RoleEmployee {
		node.Data.Status = status
	} else {
		node.Data.Label = defaultString(label, node.Data.Label)
		node.Data.Status = status
		node.Data.AssignedTo = assignedTo
		if node.Data.AssignedTo == nil {
			node.Data.AssignedTo = []string{}
		}
	}
	node.Style = styleForStatus(node.Data.Status)
	chart.Nodes[idx] = node

	chart, err = s.repo.UpdateChartContent(ctx, chartID, chart.Nodes, chart.Edges)
	if err != nil {
		return domain.Node{}, err
	}
	s.publish(chart)
	s.WriteAudit(ctx, actorID(actor), "chart.node.update", "flowchart", &chartID, node.ID)

	if added := newAssignments(previous, node.Data.AssignedTo); len(added) > 0 {
		s.notifyAssignment(ctx, actor, chart.Name, node.Data.Label, added)
	}
	return node, nil
}

func (s *FlowService) DeleteNode(ctx context.Context, actor domain.Identity, chartID uint, nodeID string) error {
	if err := s.requireEditor(actor); err != nil {
		return err
	}
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return err
	}

	nodes := make([]domain.Node, 0, len(chart.Nodes))
	found := false
	for _, n := range chart.Nodes {
		if n.ID == nodeID {
			found = true
			continue
		}
		nodes = append(nodes, n)
	}
	if !found {
		return domain.ErrNotFound
	}

	edges := make([]domain.Edge, 0, len(chart.Edges))
	for _, e := range chart.Edges {
		if e.Source == nodeID || e.Target == nodeID {
			continue
		}
		edges = append(edges, e)
	}

	chart, err = s.repo.UpdateChartContent(ctx, chartID, nodes, edges)
	if err != nil {
		return err
	}
	s.publish(chart)
	s.WriteAudit(ctx, actorID(actor), "chart.node.delete", "flowchart", &chartID, nodeID)
	return nil
}

func (s *FlowService) DeleteEdge(ctx context.Context, actor domain.Identity, chartID uint, edgeID string) error {
	if err := s.requireEditor(actor); err != nil {
		return err
	}
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return err
	}

	edges := make([]domain.Edge, 0, len(chart.Edges))
	found := false
	for _, e := range chart.Edges {
		if e.ID == edgeID {
			found = true
			continue
		}
		edges = append(edges, e)
	}
	if !found {
		return domain.ErrNotFound
	}

	chart, err = s.repo.UpdateChartContent(ctx, chartID, chart.Nodes, edges)
	if err != nil {
		return err
	}
	s.publish(chart)
	s.WriteAudit(ctx, actorID(actor), "chart.edge.delete", "flowchart", &chartID, edgeID)
	return nil
}

// SaveChart replaces the whole document. Last writer wins; no merge is
// attempted between concurrent editors.
func (s *FlowService) SaveChart(ctx context.Context, actor domain.Identity, chartID uint, nodes []domain.Node, edges []domain.Edge) (domain.Flowchart, error) {
	if err := s.requireEditor(actor); err != nil {
		return domain.Flowchart{}, err
	}
	chart, err := s.repo.UpdateChartContent(ctx, chartID, nodes, edges)
	if err != nil {
		return domain.Flowchart{}, err
	}
	s.publish(chart)
	s.WriteAudit(ctx, actorID(actor), "chart.save", "flowchart", &chartID, fmt.Sprintf("%d nodes, %d edges", len(nodes), len(edges)))
	return chart, nil
}

// Summary reports what share of a chart's tasks sit in each status. An empty
// chart divides by one so every share is simply zero.
func (s *FlowService) Summary(ctx context.Context, chartID uint) ([]domain.StatusShare, error) {
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.TaskStatus]int)
	for _, n := range chart.Nodes {
		counts[n.Data.Status]++
	}

	total := len(chart.Nodes)
	if total == 0 {
		total = 1
	}

	order := []domain.TaskStatus{domain.StatusTodo, domain.StatusProgress, domain.StatusCompleted, domain.StatusAborted, domain.StatusBug}
	result := make([]domain.StatusShare, 0, len(order))
	for _, status := range order {
		result = append(result, domain.StatusShare{
			Status:  status,
			Count:   counts[status],
			Percent: float64(counts[status]) / float64(total) * 100,
		})
	}
	return result, nil
}

// TraceDownstream walks edges source to target from a start node, reporting
// every reachable task once with the depth it was first seen at.
func (s *FlowService) TraceDownstream(ctx context.Context, chartID uint, startNodeID string, maxDepth int) ([]domain.TraceHop, error) {
	if startNodeID == "" {
		return nil, errors.New("start node id is required")
	}
	if maxDepth <= 0 {
		maxDepth = 8
	}
	chart, err := s.GetChart(ctx, chartID)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(chart.Nodes))
	for _, n := range chart.Nodes {
		labels[n.ID] = n.Data.Label
	}
	if _, ok := labels[startNodeID]; !ok {
		return nil, domain.ErrNotFound
	}

	visited := map[string]struct{}{startNodeID: {}}
	frontier := []string{startNodeID}
	hops := make([]domain.TraceHop, 0)

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, from := range frontier {
			for _, e := range chart.Edges {
				if e.Source != from {
					continue
				}
				if _, seen := visited[e.Target]; seen {
					continue
				}
				visited[e.Target] = struct{}{}
				hops = append(hops, domain.TraceHop{
					Depth:      depth,
					FromNodeID: from,
					FromLabel:  labels[from],
					EdgeID:     e.ID,
					ToNodeID:   e.Target,
					ToLabel:    labels[e.Target],
				})
				next = append(next, e.Target)
			}
		}
		frontier = next
	}
	return hops, nil
}

// SendAssignmentMail validates and delivers one notification, recording the
// attempt either way. Callers on the mutation path treat errors as non-fatal.
func (s *FlowService) SendAssignmentMail(ctx context.Context, mail domain.Mail) (string, error) {
	if len(mail.ToEmails) == 0 || strings.TrimSpace(mail.TaskName) == "" || strings.TrimSpace(mail.FlowchartName) == "" || strings.TrimSpace(mail.AssignedBy) == "" {
		return "", errors.New("toEmails, taskName, flowchartName and assignedBy are required")
	}

	messageID, err := s.notifier.Send(ctx, mail)

	record := domain.Notification{
		Recipients: strings.Join(mail.ToEmails, ","),
		TaskName:   mail.TaskName,
		ChartName:  mail.FlowchartName,
		AssignedBy: mail.AssignedBy,
		MessageID:  messageID,
	}
	if err != nil {
		record.SendError = err.Error()
	}
	if _, logErr := s.repo.CreateNotification(ctx, record); logErr != nil {
		log.Printf("notification log: %v", logErr)
	}
	return messageID, err
}

func (s *FlowService) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.repo.ListNotifications(ctx, limit)
}

func (s *FlowService) CreateUser(ctx context.Context, name, email, role, password string) (domain.User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return domain.User{}, errors.New("name and email are required")
	}
	parsed := domain.RoleEmployee
	if strings.TrimSpace(role) != "" {
		var ok bool
		parsed, ok = domain.ParseRole(role)
		if !ok {
			return domain.User{}, errors.New("role must be admin, manager or employee")
		}
	}

	hash := ""
	if password != "" {
		var err error
		hash, err = hashPassword(password)
		if err != nil {
			return domain.User{}, err
		}
	}

	return s.repo.CreateUser(ctx, domain.User{Name: name, Email: email, Role: parsed, PasswordHash: hash})
}

func (s *FlowService) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListUsers(ctx, query, limit)
}

func (s *FlowService) GetUser(ctx context.Context, id uint) (domain.User, error) {
	if id == 0 {
		return domain.User{}, errors.New("user id is required")
	}
	return s.repo.GetUserByID(ctx, id)
}

func (s *FlowService) UpdateUser(ctx context.Context, id uint, name, email, role, password string) (domain.User, error) {
	if id == 0 {
		return domain.User{}, errors.New("user id is required")
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return domain.User{}, errors.New("name and email are required")
	}
	parsed, ok := domain.ParseRole(role)
	if !ok {
		return domain.User{}, errors.New("role must be admin, manager or employee")
	}

	hash := ""
	if password != "" {
		var err error
		hash, err = hashPassword(password)
		if err != nil {
			return domain.User{}, err
		}
	}

	return s.repo.UpdateUser(ctx, domain.User{ID: id, Name: name, Email: email, Role: parsed, PasswordHash: hash})
}

func (s *FlowService) DeleteUser(ctx context.Context, id uint) error {
	if id == 0 {
		return errors.New("user id is required")
	}
	return s.repo.DeleteUser(ctx, id)
}

func (s *FlowService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *FlowService) publish(chart domain.Flowchart) {
	s.broker.Publish(snapshotOf(chart))
}

func snapshotOf(chart domain.Flowchart) domain.Snapshot {
	return domain.Snapshot{
		ChartID: chart.ID,
		Name:    chart.Name,
		Nodes:   chart.Nodes,
		Edges:   chart.Edges,
	}
}

func (s *FlowService) requireEditor(actor domain.Identity) error {
	if actor.User.Role == domain.RoleEmployee {
		return domain.ErrForbidden
	}
	return nil
}

// notifyAssignment resolves newly assigned user names to emails and sends one
// message covering all of them. Delivery failures are logged, never surfaced
// to the editor.
func (s *FlowService) notifyAssignment(ctx context.Context, actor domain.Identity, chartName, taskName string, added []string) {
	emails := make([]string, 0, len(added))
	for _, name := range added {
		u, err := s.repo.GetUserByName(ctx, name)
		if err != nil {
			log.Printf("assignment notify: no user named %q: %v", name, err)
			continue
		}
		emails = append(emails, u.Email)
	}
	if len(emails) == 0 {
		return
	}

	_, err := s.SendAssignmentMail(ctx, domain.Mail{
		ToEmails:      emails,
		TaskName:      taskName,
		FlowchartName: chartName,
		AssignedBy:    actor.User.Email,
	})
	if err != nil {
		log.Printf("assignment notify: send to %v failed: %v", emails, err)
	}
}

func newAssignments(previous, current []string) []string {
	seen := make(map[string]struct{}, len(previous))
	for _, name := range previous {
		seen[name] = struct{}{}
	}
	added := make([]string, 0)
	for _, name := range current {
		if _, ok := seen[name]; !ok {
			added = append(added, name)
		}
	}
	return added
}

func styleForStatus(status domain.TaskStatus) domain.NodeStyle {
	return domain.NodeStyle{Background: domain.StatusColor(status), Color: "white", Padding: 10}
}

func actorID(actor domain.Identity) *uint {
	if actor.User.ID == 0 {
		return nil
	}
	id := actor.User.ID
	return &id
}

func (s *FlowService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, errors.New("invalid credentials")
	}
	return u, nil
}

func (s *FlowService) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, errors.New("unauthorized")
	}
	return domain.Identity{User: u}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
