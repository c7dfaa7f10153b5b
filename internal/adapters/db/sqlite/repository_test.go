package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

func openTestRepo(t *testing.T) *FlowRepository {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "flowboard_test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewFlowRepository(db)
}

func TestChartRoundTripAndRename(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	created, err := repo.CreateChart(ctx, domain.Flowchart{Name: "rollout", Category: "ops", EndDate: "2026-09-30"})
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected generated id")
	}
	if len(created.Nodes) != 0 || len(created.Edges) != 0 {
		t.Fatalf("new chart should be empty, got %d nodes %d edges", len(created.Nodes), len(created.Edges))
	}

	node := domain.Node{
		ID:       "n1",
		Data:     domain.NodeData{Label: "Plan", Status: domain.StatusTodo, AssignedTo: []string{"Alice"}},
		Position: domain.Position{X: 120, Y: 80},
		Style:    domain.NodeStyle{Background: domain.StatusColor(domain.StatusTodo), Color: "white", Padding: 10},
	}
	edge := domain.Edge{ID: "e1", Source: "n1", Target: "n1", MarkerEnd: "arrowclosed", Type: "smoothstep"}
	if _, err := repo.UpdateChartContent(ctx, created.ID, []domain.Node{node}, []domain.Edge{edge}); err != nil {
		t.Fatalf("update content: %v", err)
	}

	loaded, err := repo.GetChartByName(ctx, "rollout")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if len(loaded.Nodes) != 1 || loaded.Nodes[0].Data.Label != "Plan" {
		t.Fatalf("unexpected nodes after round trip: %+v", loaded.Nodes)
	}
	if len(loaded.Nodes[0].Data.AssignedTo) != 1 || loaded.Nodes[0].Data.AssignedTo[0] != "Alice" {
		t.Fatalf("assignees lost in round trip: %+v", loaded.Nodes[0].Data)
	}
	if len(loaded.Edges) != 1 || loaded.Edges[0].MarkerEnd != "arrowclosed" {
		t.Fatalf("unexpected edges after round trip: %+v", loaded.Edges)
	}

	renamed, err := repo.UpdateChartMeta(ctx, created.ID, "rollout-q3", "ops", "2026-09-30")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "rollout-q3" {
		t.Fatalf("expected renamed chart, got %q", renamed.Name)
	}
	if len(renamed.Nodes) != 1 {
		t.Fatalf("rename must keep content, got %d nodes", len(renamed.Nodes))
	}
	if _, err := repo.GetChartByName(ctx, "rollout"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("old name should be gone, got %v", err)
	}
}

func TestChartNameUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if _, err := repo.CreateChart(ctx, domain.Flowchart{Name: "demo"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateChart(ctx, domain.Flowchart{Name: "demo"}); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	other, err := repo.CreateChart(ctx, domain.Flowchart{Name: "other"})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	if _, err := repo.UpdateChartMeta(ctx, other.ID, "demo", "", ""); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("rename onto taken name should fail, got %v", err)
	}
}

func TestListChartsFilter(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	charts := []domain.Flowchart{
		{Name: "a", Category: "ops", EndDate: "2026-01-10"},
		{Name: "b", Category: "ops", EndDate: "2026-02-20"},
		{Name: "c", Category: "dev", EndDate: "2026-02-20"},
	}
	for _, c := range charts {
		if _, err := repo.CreateChart(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Name, err)
		}
	}

	byCategory, err := repo.ListCharts(ctx, domain.ChartFilter{Category: "ops"}, 50)
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 ops charts, got %d", len(byCategory))
	}

	byDay, err := repo.ListCharts(ctx, domain.ChartFilter{EndDate: "2026-02-20"}, 50)
	if err != nil {
		t.Fatalf("list by day: %v", err)
	}
	if len(byDay) != 2 {
		t.Fatalf("expected 2 charts ending 2026-02-20, got %d", len(byDay))
	}

	byRange, err := repo.ListCharts(ctx, domain.ChartFilter{Category: "ops", EndDateFrom: "2026-02-01", EndDateTo: "2026-02-28"}, 50)
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	if len(byRange) != 1 || byRange[0].Name != "b" {
		t.Fatalf("expected only b in range, got %+v", byRange)
	}
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	created, err := repo.CreateUser(ctx, domain.User{Name: "Alice", Email: "Alice@Example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("email should be lowercased, got %q", created.Email)
	}
	if created.Role != domain.RoleEmployee {
		t.Fatalf("blank role should default to employee, got %q", created.Role)
	}

	if _, err := repo.CreateUser(ctx, domain.User{Name: "Alice2", Email: "alice@example.com"}); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("duplicate email should fail, got %v", err)
	}

	byName, err := repo.GetUserByName(ctx, "Alice")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("get by name mismatch")
	}

	created.Role = domain.RoleManager
	updated, err := repo.UpdateUser(ctx, created)
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Role != domain.RoleManager {
		t.Fatalf("expected manager role, got %q", updated.Role)
	}

	if err := repo.DeleteUser(ctx, created.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := repo.GetUserByID(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
