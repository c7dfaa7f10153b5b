package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/flowboard/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

type fakeNotifier struct {
	sent []domain.Mail
	fail error
}

func (f *fakeNotifier) Send(_ context.Context, mail domain.Mail) (string, error) {
	f.sent = append(f.sent, mail)
	if f.fail != nil {
		return "", f.fail
	}
	return "msg-1", nil
}

func newTestService(t *testing.T) (*FlowService, *fakeNotifier) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "flowboard_test.db")

	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlite.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	notifier := &fakeNotifier{}
	return NewFlowService(sqlite.NewFlowRepository(db), notifier), notifier
}

func managerIdentity() domain.Identity {
	return domain.Identity{User: domain.User{ID: 1, Name: "Boss", Email: "boss@example.com", Role: domain.RoleManager}}
}

func employeeIdentity() domain.Identity {
	return domain.Identity{User: domain.User{ID: 2, Name: "Worker", Email: "worker@example.com", Role: domain.RoleEmployee}}
}

func TestSummaryShares(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()

	chart, err := svc.CreateChart(ctx, "metrics", "", "")
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}

	empty, err := svc.Summary(ctx, chart.ID)
	if err != nil {
		t.Fatalf("summary of empty chart: %v", err)
	}
	for _, share := range empty {
		if share.Percent != 0 {
			t.Fatalf("empty chart should report zero shares, got %+v", share)
		}
	}

	for i := 0; i < 4; i++ {
		if _, err := svc.AddNode(ctx, manager, chart.ID); err != nil {
			t.Fatalf("add node: %v", err)
		}
	}
	loaded, err := svc.GetChart(ctx, chart.ID)
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	if _, err := svc.UpdateNode(ctx, manager, chart.ID, loaded.Nodes[0].ID, "", domain.StatusCompleted, nil); err != nil {
		t.Fatalf("update node: %v", err)
	}

	shares, err := svc.Summary(ctx, chart.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	total := 0.0
	byStatus := make(map[domain.TaskStatus]domain.StatusShare)
	for _, share := range shares {
		total += share.Percent
		byStatus[share.Status] = share
	}
	if total < 99.9 || total > 100.1 {
		t.Fatalf("shares should sum to 100, got %f", total)
	}
	if byStatus[domain.StatusCompleted].Percent != 25 {
		t.Fatalf("expected 25%% completed, got %f", byStatus[domain.StatusCompleted].Percent)
	}
	if byStatus[domain.StatusTodo].Count != 3 {
		t.Fatalf("expected 3 todo, got %d", byStatus[domain.StatusTodo].Count)
	}
}

func TestDeleteNodeRemovesIncidentEdges(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()

	chart, err := svc.CreateChart(ctx, "wiring", "", "")
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}
	a, _ := svc.AddNode(ctx, manager, chart.ID)
	b, _ := svc.AddNode(ctx, manager, chart.ID)
	c, _ := svc.AddNode(ctx, manager, chart.ID)

	if _, err := svc.ConnectNodes(ctx, manager, chart.ID, a.ID, b.ID); err != nil {
		t.Fatalf("connect a-b: %v", err)
	}
	if _, err := svc.ConnectNodes(ctx, manager, chart.ID, b.ID, c.ID); err != nil {
		t.Fatalf("connect b-c: %v", err)
	}
	keep, err := svc.ConnectNodes(ctx, manager, chart.ID, a.ID, c.ID)
	if err != nil {
		t.Fatalf("connect a-c: %v", err)
	}

	if err := svc.DeleteNode(ctx, manager, chart.ID, b.ID); err != nil {
		t.Fatalf("delete node: %v", err)
	}

	loaded, err := svc.GetChart(ctx, chart.ID)
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	if len(loaded.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(loaded.Nodes))
	}
	if len(loaded.Edges) != 1 || loaded.Edges[0].ID != keep.ID {
		t.Fatalf("expected only the a-c edge to survive, got %+v", loaded.Edges)
	}
}

func TestEmployeeMutationsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()
	employee := employeeIdentity()

	chart, err := svc.CreateChart(ctx, "guarded", "", "")
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}
	node, err := svc.AddNode(ctx, manager, chart.ID)
	if err != nil {
		t.Fatalf("add node: %v", err)
	}

	if _, err := svc.AddNode(ctx, employee, chart.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("employee add should be forbidden, got %v", err)
	}
	if _, err := svc.ConnectNodes(ctx, employee, chart.ID, node.ID, node.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("employee connect should be forbidden, got %v", err)
	}
	if err := svc.DeleteNode(ctx, employee, chart.ID, node.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("employee delete should be forbidden, got %v", err)
	}
	if _, err := svc.SaveChart(ctx, employee, chart.ID, nil, nil); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("employee save should be forbidden, got %v", err)
	}

	loaded, err := svc.GetChart(ctx, chart.ID)
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	if len(loaded.Nodes) != 1 {
		t.Fatalf("rejected mutations must leave the chart unchanged, got %d nodes", len(loaded.Nodes))
	}

	// employees can still move a task through its statuses
	updated, err := svc.UpdateNode(ctx, employee, chart.ID, node.ID, "Renamed", domain.StatusProgress, []string{"Someone"})
	if err != nil {
		t.Fatalf("employee status update: %v", err)
	}
	if updated.Data.Status != domain.StatusProgress {
		t.Fatalf("expected progress status, got %q", updated.Data.Status)
	}
	if updated.Data.Label != "New Task" || len(updated.Data.AssignedTo) != 0 {
		t.Fatalf("employee must not change label or assignees, got %+v", updated.Data)
	}
	if updated.Style.Background != "#FFA500" {
		t.Fatalf("style should follow status, got %q", updated.Style.Background)
	}
}

func TestAssignmentNotificationDelta(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestService(t)
	manager := managerIdentity()

	if _, err := svc.CreateUser(ctx, "Alice", "alice@example.com", "employee", ""); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "Bob", "bob@example.com", "employee", ""); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	chart, err := svc.CreateChart(ctx, "demo", "", "")
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}
	node, err := svc.AddNode(ctx, manager, chart.ID)
	if err != nil {
		t.Fatalf("add node: %v", err)
	}

	if _, err := svc.UpdateNode(ctx, manager, chart.ID, node.ID, "Task A", domain.StatusProgress, []string{"Alice", "Bob"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.sent))
	}
	mail := notifier.sent[0]
	if len(mail.ToEmails) != 2 || mail.ToEmails[0] != "alice@example.com" || mail.ToEmails[1] != "bob@example.com" {
		t.Fatalf("unexpected recipients: %v", mail.ToEmails)
	}
	if mail.TaskName != "Task A" || mail.FlowchartName != "demo" {
		t.Fatalf("unexpected mail content: %+v", mail)
	}

	// re-saving the same assignee set fires nothing
	if _, err := svc.UpdateNode(ctx, manager, chart.ID, node.ID, "Task A", domain.StatusProgress, []string{"Alice", "Bob"}); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("re-save must not notify, got %d", len(notifier.sent))
	}

	records, err := svc.ListNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(records) != 1 || records[0].Recipients != "alice@example.com,bob@example.com" {
		t.Fatalf("unexpected notification log: %+v", records)
	}
}

func TestAssignmentScenario(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestService(t)
	manager := managerIdentity()

	if _, err := svc.CreateUser(ctx, "Alice", "alice@example.com", "employee", ""); err != nil {
		t.Fatalf("create alice: %v", err)
	}

	chart, err := svc.CreateChart(ctx, "demo", "", "")
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}
	if len(chart.Nodes) != 0 || len(chart.Edges) != 0 {
		t.Fatalf("new chart must be empty")
	}

	node, err := svc.AddNode(ctx, manager, chart.ID)
	if err != nil {
		t.Fatalf("add node: %v", err)
	}
	if node.Data.Label != "New Task" || node.Data.Status != domain.StatusTodo {
		t.Fatalf("unexpected fresh node: %+v", node.Data)
	}
	if node.Position.X < 0 || node.Position.X >= 400 || node.Position.Y < 0 || node.Position.Y >= 400 {
		t.Fatalf("position out of range: %+v", node.Position)
	}

	if _, err := svc.UpdateNode(ctx, manager, chart.ID, node.ID, "Task A", domain.StatusProgress, []string{"Alice"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if notifier.sent[0].ToEmails[0] != "alice@example.com" || notifier.sent[0].TaskName != "Task A" {
		t.Fatalf("unexpected notification: %+v", notifier.sent[0])
	}

	if err := svc.DeleteNode(ctx, manager, chart.ID, node.ID); err != nil {
		t.Fatalf("delete node: %v", err)
	}
	loaded, err := svc.GetChart(ctx, chart.ID)
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	if len(loaded.Nodes) != 0 || len(loaded.Edges) != 0 {
		t.Fatalf("expected empty chart after delete, got %d nodes %d edges", len(loaded.Nodes), len(loaded.Edges))
	}
}

func TestNotificationFailureDoesNotBlockEdit(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestService(t)
	notifier.fail = errors.New("smtp down")
	manager := managerIdentity()

	if _, err := svc.CreateUser(ctx, "Alice", "alice@example.com", "employee", ""); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	chart, _ := svc.CreateChart(ctx, "demo", "", "")
	node, _ := svc.AddNode(ctx, manager, chart.ID)

	updated, err := svc.UpdateNode(ctx, manager, chart.ID, node.ID, "Task A", domain.StatusTodo, []string{"Alice"})
	if err != nil {
		t.Fatalf("edit must survive notifier failure: %v", err)
	}
	if len(updated.Data.AssignedTo) != 1 {
		t.Fatalf("assignment should persist, got %+v", updated.Data)
	}

	records, err := svc.ListNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(records) != 1 || records[0].SendError == "" {
		t.Fatalf("failed attempt should be logged with its error, got %+v", records)
	}
}

func TestOpenChartByNameCreatesMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	chart, err := svc.OpenChartByName(ctx, "fresh")
	if err != nil {
		t.Fatalf("open missing chart: %v", err)
	}
	if chart.ID == 0 || len(chart.Nodes) != 0 {
		t.Fatalf("expected fresh empty chart, got %+v", chart)
	}

	again, err := svc.OpenChartByName(ctx, "fresh")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.ID != chart.ID {
		t.Fatalf("reopen must return the same chart")
	}
}

func TestDuplicateChart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()

	chart, _ := svc.CreateChart(ctx, "origin", "ops", "2026-12-01")
	if _, err := svc.AddNode(ctx, manager, chart.ID); err != nil {
		t.Fatalf("add node: %v", err)
	}

	dup, err := svc.DuplicateChart(ctx, chart.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.Name != "origin-Copy" {
		t.Fatalf("expected origin-Copy, got %q", dup.Name)
	}
	if len(dup.Nodes) != 1 {
		t.Fatalf("duplicate must carry content, got %d nodes", len(dup.Nodes))
	}

	if _, err := svc.DuplicateChart(ctx, chart.ID); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("second duplicate should collide, got %v", err)
	}
}

func TestWatchDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()

	chart, _ := svc.CreateChart(ctx, "live", "", "")
	ch, cancel, err := svc.Watch(ctx, chart.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	seed := waitSnapshot(t, ch)
	if seed.ChartID != chart.ID || len(seed.Nodes) != 0 {
		t.Fatalf("unexpected seed snapshot: %+v", seed)
	}

	if _, err := svc.AddNode(ctx, manager, chart.ID); err != nil {
		t.Fatalf("add node: %v", err)
	}
	snap := waitSnapshot(t, ch)
	if len(snap.Nodes) != 1 {
		t.Fatalf("expected snapshot with one node, got %+v", snap)
	}

	if err := svc.DeleteChart(ctx, chart.ID); err != nil {
		t.Fatalf("delete chart: %v", err)
	}
	gone := waitSnapshot(t, ch)
	if !gone.Gone {
		t.Fatalf("expected terminal gone snapshot, got %+v", gone)
	}
}

func TestWatchSeedOnlyReachesNewSubscriber(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()

	chart, _ := svc.CreateChart(ctx, "shared", "", "")
	if _, err := svc.AddNode(ctx, manager, chart.ID); err != nil {
		t.Fatalf("add node: %v", err)
	}

	first, cancelFirst, err := svc.Watch(ctx, chart.ID)
	if err != nil {
		t.Fatalf("first watch: %v", err)
	}
	defer cancelFirst()
	waitSnapshot(t, first)

	second, cancelSecond, err := svc.Watch(ctx, chart.ID)
	if err != nil {
		t.Fatalf("second watch: %v", err)
	}
	defer cancelSecond()

	seed := waitSnapshot(t, second)
	if len(seed.Nodes) != 1 {
		t.Fatalf("second watcher should seed with current state, got %+v", seed)
	}

	select {
	case snap := <-first:
		t.Fatalf("first watcher must not see another watcher attach, got %+v", snap)
	default:
	}
}

func waitSnapshot(t *testing.T, ch <-chan domain.Snapshot) domain.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return domain.Snapshot{}
	}
}

func TestResolveRoleDefaultsToEmployee(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if role := svc.ResolveRole(ctx, "ghost@example.com"); role != domain.RoleEmployee {
		t.Fatalf("unknown email should resolve to employee, got %q", role)
	}

	if _, err := svc.CreateUser(ctx, "Mary", "mary@example.com", "manager", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role := svc.ResolveRole(ctx, "mary@example.com"); role != domain.RoleManager {
		t.Fatalf("expected manager, got %q", role)
	}
}

func TestTraceDownstream(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	manager := managerIdentity()

	chart, _ := svc.CreateChart(ctx, "deps", "", "")
	a, _ := svc.AddNode(ctx, manager, chart.ID)
	b, _ := svc.AddNode(ctx, manager, chart.ID)
	c, _ := svc.AddNode(ctx, manager, chart.ID)

	if _, err := svc.ConnectNodes(ctx, manager, chart.ID, a.ID, b.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := svc.ConnectNodes(ctx, manager, chart.ID, b.ID, c.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	// cycle back to the start must not loop
	if _, err := svc.ConnectNodes(ctx, manager, chart.ID, c.ID, a.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}

	hops, err := svc.TraceDownstream(ctx, chart.ID, a.ID, 8)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(hops) != 2 {
		t.Fatalf("expected 2 hops, got %+v", hops)
	}
	if hops[0].ToNodeID != b.ID || hops[0].Depth != 1 {
		t.Fatalf("unexpected first hop: %+v", hops[0])
	}
	if hops[1].ToNodeID != c.ID || hops[1].Depth != 2 {
		t.Fatalf("unexpected second hop: %+v", hops[1])
	}

	shallow, err := svc.TraceDownstream(ctx, chart.ID, a.ID, 1)
	if err != nil {
		t.Fatalf("trace depth1: %v", err)
	}
	if len(shallow) != 1 {
		t.Fatalf("depth limit ignored: %+v", shallow)
	}
}
