package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/flowboard/internal/application"
	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

type Server struct {
	service  *application.FlowService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  any         `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.FlowService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "auth.login":
		return s.handleAuthLogin(ctx, req)
	case "auth.whoami":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"id": identity.User.ID, "name": identity.User.Name, "email": identity.User.Email, "role": identity.User.Role}, ID: req.ID}
	case "auth.role":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Email string `json:"email"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		email := defaultString(p.Email, identity.User.Email)
		role := s.service.ResolveRole(ctx, email)
		return response{JSONRPC: "2.0", Result: map[string]any{"email": email, "role": role}, ID: req.ID}
	case "charts.list":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token       string `json:"token"`
			Category    string `json:"category"`
			EndDate     string `json:"end_date"`
			EndDateFrom string `json:"end_date_from"`
			EndDateTo   string `json:"end_date_to"`
			Limit       int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListCharts(ctx, domain.ChartFilter{
			Category:    p.Category,
			EndDate:     p.EndDate,
			EndDateFrom: p.EndDateFrom,
			EndDateTo:   p.EndDateTo,
		}, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.create":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			Name     string `json:"name"`
			Category string `json:"category"`
			EndDate  string `json:"end_date"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateChart(ctx, p.Name, p.Category, p.EndDate)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "chart.create", "flowchart", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.open":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Name  string `json:"name"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.OpenChartByName(ctx, p.Name)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.get":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.GetChart(ctx, p.ChartID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.update":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			ChartID  uint   `json:"chart_id"`
			Name     string `json:"name"`
			Category string `json:"category"`
			EndDate  string `json:"end_date"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateChartMeta(ctx, p.ChartID, p.Name, p.Category, p.EndDate)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "chart.update_meta", "flowchart", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.duplicate":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.DuplicateChart(ctx, p.ChartID)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "chart.duplicate", "flowchart", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.delete":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteChart(ctx, p.ChartID); err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "chart.delete", "flowchart", &p.ChartID, "rpc")
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "charts.save":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string        `json:"token"`
			ChartID uint          `json:"chart_id"`
			Nodes   []domain.Node `json:"nodes"`
			Edges   []domain.Edge `json:"edges"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.SaveChart(ctx, identity, p.ChartID, p.Nodes, p.Edges)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.summary":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.Summary(ctx, p.ChartID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "charts.trace":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token       string `json:"token"`
			ChartID     uint   `json:"chart_id"`
			StartNodeID string `json:"start_node_id"`
			MaxDepth    int    `json:"max_depth"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.TraceDownstream(ctx, p.ChartID, p.StartNodeID, p.MaxDepth)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "nodes.add":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.AddNode(ctx, identity, p.ChartID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "nodes.update":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string   `json:"token"`
			ChartID    uint     `json:"chart_id"`
			NodeID     string   `json:"node_id"`
			Label      string   `json:"label"`
			Status     string   `json:"status"`
			AssignedTo []string `json:"assigned_to"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateNode(ctx, identity, p.ChartID, p.NodeID, p.Label, domain.TaskStatus(p.Status), p.AssignedTo)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "nodes.delete":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
			NodeID  string `json:"node_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteNode(ctx, identity, p.ChartID, p.NodeID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "edges.connect":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
			Source  string `json:"source"`
			Target  string `json:"target"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ConnectNodes(ctx, identity, p.ChartID, p.Source, p.Target)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "edges.delete":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			ChartID uint   `json:"chart_id"`
			EdgeID  string `json:"edge_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteEdge(ctx, identity, p.ChartID, p.EdgeID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "users.list":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Q     string `json:"q"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListUsers(ctx, p.Q, 500)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "users.create":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			Role     string `json:"role"`
			Password string `json:"password"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateUser(ctx, p.Name, p.Email, p.Role, p.Password)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "user.create", "user", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "users.update":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			UserID   uint   `json:"user_id"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			Role     string `json:"role"`
			Password string `json:"password"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateUser(ctx, p.UserID, p.Name, p.Email, p.Role, p.Password)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "user.update", "user", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "users.delete":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token  string `json:"token"`
			UserID uint   `json:"user_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteUser(ctx, p.UserID); err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "user.delete", "user", &p.UserID, "rpc")
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "audit.list":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListAuditLogs(ctx, 500)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "notifications.list":
		_, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListNotifications(ctx, 500)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "role": u.Role, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func appError(id any, err error) response {
	if errors.Is(err, domain.ErrForbidden) {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40300, Message: "forbidden"}, ID: id}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40400, Message: "not found"}, ID: id}
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: err.Error()}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
