package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleEmployee:
		return Role(s), true
	}
	return "", false
}

type TaskStatus string

const (
	StatusTodo      TaskStatus = "todo"
	StatusProgress  TaskStatus = "progress"
	StatusCompleted TaskStatus = "completed"
	StatusAborted   TaskStatus = "aborted"
	StatusBug       TaskStatus = "bug"
)

// StatusColor maps a task status to the node background color shown by
// diagram clients. Unknown statuses fall back to the todo gray.
func StatusColor(status TaskStatus) string {
	switch status {
	case StatusProgress:
		return "#FFA500"
	case StatusCompleted:
		return "#008000"
	case StatusAborted:
		return "#FF0000"
	case StatusBug:
		return "#800080"
	default:
		return "#808080"
	}
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeStyle struct {
	Background string `json:"background"`
	Color      string `json:"color"`
	Padding    int    `json:"padding"`
}

type NodeData struct {
	Label      string     `json:"label"`
	Status     TaskStatus `json:"status"`
	AssignedTo []string   `json:"assignedTo"`
}

type Node struct {
	ID       string    `json:"id"`
	Data     NodeData  `json:"data"`
	Position Position  `json:"position"`
	Style    NodeStyle `json:"style"`
}

type Edge struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	MarkerEnd string `json:"markerEnd"`
	Type      string `json:"type"`
}

type Flowchart struct {
	ID        uint
	Name      string
	Category  string
	EndDate   string
	Nodes     []Node
	Edges     []Edge
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChartMeta is the directory projection of a flowchart, without content.
type ChartMeta struct {
	ID        uint
	Name      string
	Category  string
	EndDate   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChartFilter narrows a directory listing. EndDate matches the exact day;
// EndDateFrom/EndDateTo form an inclusive range when EndDate is empty.
type ChartFilter struct {
	Category    string
	EndDate     string
	EndDateFrom string
	EndDateTo   string
}

// Snapshot is the full document state pushed to watchers after every
// mutation. Gone marks the terminal snapshot published on delete.
type Snapshot struct {
	ChartID uint   `json:"chartId"`
	Name    string `json:"name"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Gone    bool   `json:"gone,omitempty"`
}

// StatusShare is one slice of the status summary, as a percentage of all
// nodes in the chart.
type StatusShare struct {
	Status  TaskStatus `json:"status"`
	Count   int        `json:"count"`
	Percent float64    `json:"percent"`
}

type TraceHop struct {
	Depth      int    `json:"depth"`
	FromNodeID string `json:"fromNodeId"`
	FromLabel  string `json:"fromLabel"`
	EdgeID     string `json:"edgeId"`
	ToNodeID   string `json:"toNodeId"`
	ToLabel    string `json:"toLabel"`
}

type User struct {
	ID           uint
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type AuditLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

type AuditRecord struct {
	ID             uint
	ActorUserID    *uint
	ActorUserEmail string
	Action         string
	TargetType     string
	TargetID       *uint
	Metadata       string
	CreatedAt      time.Time
}

// Notification is the log row written for every attempted assignment email.
type Notification struct {
	ID         uint
	Recipients string
	TaskName   string
	ChartName  string
	AssignedBy string
	MessageID  string
	SendError  string
	CreatedAt  time.Time
}

type Identity struct {
	User User
}

// Mail is a single outbound message handed to the Notifier port.
type Mail struct {
	ToEmails      []string
	TaskName      string
	FlowchartName string
	AssignedBy    string
}
