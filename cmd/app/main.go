package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/flowboard/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/flowboard/internal/adapters/http"
	mailadapter "github.com/atvirokodosprendimai/flowboard/internal/adapters/mail"
	rpcadapter "github.com/atvirokodosprendimai/flowboard/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/flowboard/internal/application"
	"github.com/atvirokodosprendimai/flowboard/internal/config"
	"github.com/atvirokodosprendimai/flowboard/internal/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "flowboard",
		Usage: "Task flowchart system server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			chartsCommand(),
			nodesCommand(),
			edgesCommand(),
			usersCommand(),
			auditCommand(),
			notificationsCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, config.Default())
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "flowboard.toml", Usage: "TOML config path"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "admin-name", Usage: "initial admin name"},
			&cli.StringFlag{Name: "admin-email", Usage: "initial admin email"},
			&cli.StringFlag{Name: "admin-password", Usage: "initial admin password when users are empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if v := c.String("addr"); v != "" {
				cfg.Listen = v
			}
			if v := c.String("rpc-socket"); v != "" {
				cfg.RPCSocket = v
			}
			if v := c.String("db-path"); v != "" {
				cfg.DBPath = v
			}
			if v := c.String("admin-name"); v != "" {
				cfg.AdminName = v
			}
			if v := c.String("admin-email"); v != "" {
				cfg.AdminEmail = v
			}
			if v := c.String("admin-password"); v != "" {
				cfg.AdminPass = v
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewFlowRepository(db)
	notifier := mailadapter.NewSMTPNotifier(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	service := application.NewFlowService(repo, notifier)

	adminName := cfg.AdminName
	if adminName == "" {
		adminName = "Admin"
	}
	adminEmail := cfg.AdminEmail
	if adminEmail == "" {
		adminEmail = "admin@flowboard.local"
	}
	adminPass := cfg.AdminPass
	if adminPass == "" {
		adminPass = "admin"
	}
	if err := service.BootstrapAdmin(ctx, adminName, adminEmail, adminPass); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: cfg.Listen, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPCSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", cfg.RPCSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/flowboard.sock"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out)
					if err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						ID    uint   `json:"id"`
						Name  string `json:"name"`
						Email string `json:"email"`
						Role  string `json:"role"`
					}
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"id", uintToString(out.ID)}, {"name", out.Name}, {"email", out.Email}, {"role", out.Role}})
					return nil
				},
			},
			{
				Name:  "role",
				Usage: "Resolve the effective role for an email",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Email string `json:"email"`
						Role  string `json:"role"`
					}
					if err := doResolveRole(ctx, cfg, c.String("email"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"email", out.Email}, {"role", out.Role}})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func chartsCommand() *cli.Command {
	return &cli.Command{
		Name:  "charts",
		Usage: "Flowchart directory commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List flowcharts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category"},
					&cli.StringFlag{Name: "end-date", Usage: "exact end date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "end-date-from"},
					&cli.StringFlag{Name: "end-date-to"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.ChartMeta
					if err := doChartsList(ctx, cfg, c.String("category"), c.String("end-date"), c.String("end-date-from"), c.String("end-date-to"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChartMetas(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create flowchart",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "category"},
					&cli.StringFlag{Name: "end-date"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Flowchart
					if err := doChartsCreate(ctx, cfg, c.String("name"), c.String("category"), c.String("end-date"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChart(out)
					return nil
				},
			},
			{
				Name:  "open",
				Usage: "Open flowchart by name, creating it when missing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Flowchart
					if err := doChartsOpen(ctx, cfg, c.String("name"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChart(out)
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "Show flowchart",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Flowchart
					if err := doChartsGet(ctx, cfg, c.Uint("chart-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChart(out)
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Rename flowchart or change its category/end date",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "category"},
					&cli.StringFlag{Name: "end-date"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Flowchart
					if err := doChartsUpdate(ctx, cfg, c.Uint("chart-id"), c.String("name"), c.String("category"), c.String("end-date"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChart(out)
					return nil
				},
			},
			{
				Name:  "duplicate",
				Usage: "Duplicate flowchart under a -Copy name",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Flowchart
					if err := doChartsDuplicate(ctx, cfg, c.Uint("chart-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChart(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete flowchart",
				Flags: []cli.Flag{&cli.UintFlag{Name: "chart-id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doChartsDelete(ctx, cfg, c.Uint("chart-id"), &out); err != nil {
						return err
					}
					fmt.Printf("deleted chart %d\n", c.Uint("chart-id"))
					return nil
				},
			},
			{
				Name:  "summary",
				Usage: "Show status share summary",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.StatusShare
					if err := doChartsSummary(ctx, cfg, c.Uint("chart-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printShares(out)
					return nil
				},
			},
			{
				Name:  "trace",
				Usage: "Trace downstream tasks from a node",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.StringFlag{Name: "from", Required: true, Usage: "start node id"},
					&cli.IntFlag{Name: "depth", Value: 8},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.TraceHop
					if err := doChartsTrace(ctx, cfg, c.Uint("chart-id"), c.String("from"), c.Int("depth"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printTraceHops(out)
					return nil
				},
			},
		},
	}
}

func nodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "Task node commands",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a new task node to a chart",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Node
					if err := doNodesAdd(ctx, cfg, c.Uint("chart-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printNode(out)
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Update task label, status or assignees",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.StringFlag{Name: "node-id", Required: true},
					&cli.StringFlag{Name: "label"},
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "assigned-to", Usage: "csv user names"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var assigned []string
					if v := c.String("assigned-to"); v != "" {
						for _, part := range strings.Split(v, ",") {
							if name := strings.TrimSpace(part); name != "" {
								assigned = append(assigned, name)
							}
						}
					}
					var out domain.Node
					if err := doNodesUpdate(ctx, cfg, c.Uint("chart-id"), c.String("node-id"), c.String("label"), c.String("status"), assigned, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printNode(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a task node and its incident edges",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.StringFlag{Name: "node-id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doNodesDelete(ctx, cfg, c.Uint("chart-id"), c.String("node-id"), &out); err != nil {
						return err
					}
					fmt.Printf("deleted node %s\n", c.String("node-id"))
					return nil
				},
			},
		},
	}
}

func edgesCommand() *cli.Command {
	return &cli.Command{
		Name:  "edges",
		Usage: "Edge commands",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Connect two task nodes",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.StringFlag{Name: "source", Required: true},
					&cli.StringFlag{Name: "target", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Edge
					if err := doEdgesConnect(ctx, cfg, c.Uint("chart-id"), c.String("source"), c.String("target"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEdge(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete edge by id",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "chart-id", Required: true},
					&cli.StringFlag{Name: "edge-id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doEdgesDelete(ctx, cfg, c.Uint("chart-id"), c.String("edge-id"), &out); err != nil {
						return err
					}
					fmt.Printf("deleted edge %s\n", c.String("edge-id"))
					return nil
				},
			},
		},
	}
}

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "User directory commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.User
					if err := doUsersList(ctx, cfg, c.String("q"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printUsers(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "role", Value: "employee"},
					&cli.StringFlag{Name: "password"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.User
					if err := doUsersCreate(ctx, cfg, c.String("name"), c.String("email"), c.String("role"), c.String("password"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printUsers([]domain.User{out})
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Update user",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "user-id", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "role"},
					&cli.StringFlag{Name: "password"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.User
					if err := doUsersUpdate(ctx, cfg, c.Uint("user-id"), c.String("name"), c.String("email"), c.String("role"), c.String("password"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printUsers([]domain.User{out})
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete user",
				Flags: []cli.Flag{&cli.UintFlag{Name: "user-id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doUsersDelete(ctx, cfg, c.Uint("user-id"), &out); err != nil {
						return err
					}
					fmt.Printf("deleted user %d\n", c.Uint("user-id"))
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}

func notificationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "Assignment notification log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sent and failed assignment notifications",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Notification
					if err := doNotificationsList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printNotifications(out)
					return nil
				},
			},
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
