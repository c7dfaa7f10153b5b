package main

import (
	"context"
	"fmt"
	"net/http"
)

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.login", map[string]any{
			"email":      email,
			"password":   password,
			"token_name": tokenName,
		}, out)
	}
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":      email,
		"password":   password,
		"mode":       "token",
		"token_name": tokenName,
	}, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.whoami", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/auth/whoami", nil, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == "uds" {
		return nil
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func doResolveRole(ctx context.Context, cfg cliConfig, email string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.role", map[string]any{"token": cfg.Token, "email": email}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/auth/role"
	if email != "" {
		path += "?email=" + email
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doChartsList(ctx context.Context, cfg cliConfig, category, endDate, endDateFrom, endDateTo string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.list", map[string]any{
			"token":         cfg.Token,
			"category":      category,
			"end_date":      endDate,
			"end_date_from": endDateFrom,
			"end_date_to":   endDateTo,
			"limit":         200,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/flowcharts"
	params := ""
	for _, p := range [][2]string{
		{"category", category},
		{"end_date", endDate},
		{"end_date_from", endDateFrom},
		{"end_date_to", endDateTo},
	} {
		if p[1] == "" {
			continue
		}
		if params != "" {
			params += "&"
		}
		params += p[0] + "=" + p[1]
	}
	if params != "" {
		path += "?" + params
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doChartsCreate(ctx context.Context, cfg cliConfig, name, category, endDate string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.create", map[string]any{"token": cfg.Token, "name": name, "category": category, "end_date": endDate}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/flowcharts", map[string]any{"name": name, "category": category, "endDate": endDate}, out)
}

func doChartsOpen(ctx context.Context, cfg cliConfig, name string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.open", map[string]any{"token": cfg.Token, "name": name}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/flowcharts/open", map[string]any{"name": name}, out)
}

func doChartsGet(ctx context.Context, cfg cliConfig, chartID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.get", map[string]any{"token": cfg.Token, "chart_id": chartID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/flowcharts/"+uintToString(chartID), nil, out)
}

func doChartsUpdate(ctx context.Context, cfg cliConfig, chartID uint, name, category, endDate string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.update", map[string]any{"token": cfg.Token, "chart_id": chartID, "name": name, "category": category, "end_date": endDate}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPut, "/api/flowcharts/"+uintToString(chartID), map[string]any{"name": name, "category": category, "endDate": endDate}, out)
}

func doChartsDuplicate(ctx context.Context, cfg cliConfig, chartID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.duplicate", map[string]any{"token": cfg.Token, "chart_id": chartID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/flowcharts/"+uintToString(chartID)+"/duplicate", nil, out)
}

func doChartsDelete(ctx context.Context, cfg cliConfig, chartID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.delete", map[string]any{"token": cfg.Token, "chart_id": chartID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodDelete, "/api/flowcharts/"+uintToString(chartID), nil, out)
}

func doChartsSummary(ctx context.Context, cfg cliConfig, chartID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.summary", map[string]any{"token": cfg.Token, "chart_id": chartID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/flowcharts/"+uintToString(chartID)+"/summary", nil, out)
}

func doChartsTrace(ctx context.Context, cfg cliConfig, chartID uint, startNodeID string, maxDepth int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "charts.trace", map[string]any{"token": cfg.Token, "chart_id": chartID, "start_node_id": startNodeID, "max_depth": maxDepth}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/flowcharts/"+uintToString(chartID)+"/trace", map[string]any{"startNodeId": startNodeID, "maxDepth": maxDepth}, out)
}

func doNodesAdd(ctx context.Context, cfg cliConfig, chartID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "nodes.add", map[string]any{"token": cfg.Token, "chart_id": chartID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/flowcharts/"+uintToString(chartID)+"/nodes", nil, out)
}

func doNodesUpdate(ctx context.Context, cfg cliConfig, chartID uint, nodeID, label, status string, assignedTo []string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "nodes.update", map[string]any{
			"token":       cfg.Token,
			"chart_id":    chartID,
			"node_id":     nodeID,
			"label":       label,
			"status":      status,
			"assigned_to": assignedTo,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/flowcharts/" + uintToString(chartID) + "/nodes/" + nodeID
	return client.request(ctx, http.MethodPut, path, map[string]any{"label": label, "status": status, "assignedTo": assignedTo}, out)
}

func doNodesDelete(ctx context.Context, cfg cliConfig, chartID uint, nodeID string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "nodes.delete", map[string]any{"token": cfg.Token, "chart_id": chartID, "node_id": nodeID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodDelete, "/api/flowcharts/"+uintToString(chartID)+"/nodes/"+nodeID, nil, out)
}

func doEdgesConnect(ctx context.Context, cfg cliConfig, chartID uint, source, target string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "edges.connect", map[string]any{"token": cfg.Token, "chart_id": chartID, "source": source, "target": target}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/flowcharts/"+uintToString(chartID)+"/edges", map[string]any{"source": source, "target": target}, out)
}

func doEdgesDelete(ctx context.Context, cfg cliConfig, chartID uint, edgeID string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "edges.delete", map[string]any{"token": cfg.Token, "chart_id": chartID, "edge_id": edgeID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodDelete, "/api/flowcharts/"+uintToString(chartID)+"/edges/"+edgeID, nil, out)
}

func doUsersList(ctx context.Context, cfg cliConfig, q string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "users.list", map[string]any{"token": cfg.Token, "q": q}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/users"
	if q != "" {
		path += "?q=" + q
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doUsersCreate(ctx context.Context, cfg cliConfig, name, email, role, password string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "users.create", map[string]any{"token": cfg.Token, "name": name, "email": email, "role": role, "password": password}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/users", map[string]any{"name": name, "email": email, "role": role, "password": password}, out)
}

func doUsersUpdate(ctx context.Context, cfg cliConfig, userID uint, name, email, role, password string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "users.update", map[string]any{"token": cfg.Token, "user_id": userID, "name": name, "email": email, "role": role, "password": password}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPut, "/api/users/"+uintToString(userID), map[string]any{"name": name, "email": email, "role": role, "password": password}, out)
}

func doUsersDelete(ctx context.Context, cfg cliConfig, userID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "users.delete", map[string]any{"token": cfg.Token, "user_id": userID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodDelete, "/api/users/"+uintToString(userID), nil, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "audit.list", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/audit/logs", nil, out)
}

func doNotificationsList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "notifications.list", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/notifications", nil, out)
}

func uintToString(v uint) string {
	return fmt.Sprintf("%d", v)
}
