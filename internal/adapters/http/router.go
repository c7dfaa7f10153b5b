package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/flowboard/internal/application"
	"github.com/atvirokodosprendimai/flowboard/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"
)

const sessionCookieName = "fb_session"

type contextKey string

const identityKey contextKey = "identity"

type Handler struct {
	service *application.FlowService
}

func NewRouter(service *application.FlowService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleAPILogin)
		api.With(h.requireAuth).Get("/auth/whoami", h.handleAPIWhoAmI)
		api.With(h.requireAuth).Post("/auth/logout", h.handleAPILogout)
		api.With(h.requireAuth).Get("/auth/role", h.handleAPIResolveRole)

		api.With(h.requireAuth).Get("/flowcharts", h.handleAPIListCharts)
		api.With(h.requireAuth).Post("/flowcharts", h.handleAPICreateChart)
		api.With(h.requireAuth).Post("/flowcharts/open", h.handleAPIOpenChart)
		api.With(h.requireAuth).Get("/flowcharts/{id}", h.handleAPIGetChart)
		api.With(h.requireAuth).Put("/flowcharts/{id}", h.handleAPIUpdateChartMeta)
		api.With(h.requireAuth).Post("/flowcharts/{id}/duplicate", h.handleAPIDuplicateChart)
		api.With(h.requireAuth).Delete("/flowcharts/{id}", h.handleAPIDeleteChart)
		api.With(h.requireAuth).Get("/flowcharts/{id}/watch", h.handleAPIWatchChart)
		api.With(h.requireAuth).Get("/flowcharts/{id}/summary", h.handleAPISummary)
		api.With(h.requireAuth).Post("/flowcharts/{id}/trace", h.handleAPITrace)

		api.With(h.requireAuth).Post("/flowcharts/{id}/nodes", h.handleAPIAddNode)
		api.With(h.requireAuth).Put("/flowcharts/{id}/nodes/{nodeID}", h.handleAPIUpdateNode)
		api.With(h.requireAuth).Delete("/flowcharts/{id}/nodes/{nodeID}", h.handleAPIDeleteNode)
		api.With(h.requireAuth).Post("/flowcharts/{id}/edges", h.handleAPIConnect)
		api.With(h.requireAuth).Delete("/flowcharts/{id}/edges/{edgeID}", h.handleAPIDeleteEdge)
		api.With(h.requireAuth).Put("/flowcharts/{id}/content", h.handleAPISaveChart)

		// user directory is deliberately open to every authenticated
		// identity, not just admins
		api.With(h.requireAuth).Get("/users", h.handleAPIListUsers)
		api.With(h.requireAuth).Post("/users", h.handleAPICreateUser)
		api.With(h.requireAuth).Put("/users/{id}", h.handleAPIUpdateUser)
		api.With(h.requireAuth).Delete("/users/{id}", h.handleAPIDeleteUser)

		api.With(h.requireAuth).Get("/audit/logs", h.handleAPIListAuditLogs)
		api.With(h.requireAuth).Get("/notifications", h.handleAPIListNotifications)

		api.Post("/sendEmail", h.handleAPISendEmail)
	})

	return r
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := h.authenticateRequest(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.service.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.service.LoginWithSession(r.Context(), req.Email, req.Password, 12*time.Hour)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "role": u.Role, "mode": "session"})
		return
	}

	u, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "role": u.Role, "token": token, "mode": "token"})
}

func (h *Handler) handleAPIWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    identity.User.ID,
		"name":  identity.User.Name,
		"email": identity.User.Email,
		"role":  identity.User.Role,
	})
}

func (h *Handler) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIResolveRole(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		if identity, ok := identityFromContext(r.Context()); ok {
			email = identity.User.Email
		}
	}
	role := h.service.ResolveRole(r.Context(), email)
	writeJSON(w, http.StatusOK, map[string]any{"email": email, "role": role})
}

func (h *Handler) handleAPIListCharts(w http.ResponseWriter, r *http.Request) {
	filter := domain.ChartFilter{
		Category:    r.URL.Query().Get("category"),
		EndDate:     r.URL.Query().Get("end_date"),
		EndDateFrom: r.URL.Query().Get("end_date_from"),
		EndDateTo:   r.URL.Query().Get("end_date_to"),
	}
	items, err := h.service.ListCharts(r.Context(), filter, 500)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiChartRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	EndDate  string `json:"endDate"`
}

func (h *Handler) handleAPICreateChart(w http.ResponseWriter, r *http.Request) {
	var req apiChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.CreateChart(r.Context(), req.Name, req.Category, req.EndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "chart.create", "flowchart", &v.ID)
	writeJSON(w, http.StatusOK, chartPayload(v))
}

type apiOpenChartRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleAPIOpenChart(w http.ResponseWriter, r *http.Request) {
	var req apiOpenChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.OpenChartByName(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chartPayload(v))
}

func (h *Handler) handleAPIGetChart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	v, err := h.service.GetChart(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chartPayload(v))
}

func (h *Handler) handleAPIUpdateChartMeta(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req apiChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.UpdateChartMeta(r.Context(), id, req.Name, req.Category, req.EndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "chart.update_meta", "flowchart", &v.ID)
	writeJSON(w, http.StatusOK, chartPayload(v))
}

func (h *Handler) handleAPIDuplicateChart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	v, err := h.service.DuplicateChart(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "chart.duplicate", "flowchart", &v.ID)
	writeJSON(w, http.StatusOK, chartPayload(v))
}

func (h *Handler) handleAPIDeleteChart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteChart(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "chart.delete", "flowchart", &id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAPIWatchChart streams the full document to the client after every
// mutation until the chart is deleted or the client disconnects.
func (h *Handler) handleAPIWatchChart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	ch, cancel, err := h.service.Watch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer cancel()

	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-ch:
			if err := sse.MarshalAndPatchSignals(snap); err != nil {
				return
			}
			if snap.Gone {
				return
			}
		}
	}
}

func (h *Handler) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	shares, err := h.service.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

type apiTraceRequest struct {
	StartNodeID string `json:"startNodeId"`
	MaxDepth    int    `json:"maxDepth"`
}

func (h *Handler) handleAPITrace(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req apiTraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	hops, err := h.service.TraceDownstream(r.Context(), id, req.StartNodeID, req.MaxDepth)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hops)
}

func (h *Handler) handleAPIAddNode(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	identity, _ := identityFromContext(r.Context())
	node, err := h.service.AddNode(r.Context(), identity, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type apiUpdateNodeRequest struct {
	Label      string   `json:"label"`
	Status     string   `json:"status"`
	AssignedTo []string `json:"assignedTo"`
}

func (h *Handler) handleAPIUpdateNode(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req apiUpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	identity, _ := identityFromContext(r.Context())
	node, err := h.service.UpdateNode(r.Context(), identity, id, chi.URLParam(r, "nodeID"), req.Label, domain.TaskStatus(req.Status), req.AssignedTo)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *Handler) handleAPIDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	identity, _ := identityFromContext(r.Context())
	if err := h.service.DeleteNode(r.Context(), identity, id, chi.URLParam(r, "nodeID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type apiConnectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (h *Handler) handleAPIConnect(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req apiConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	identity, _ := identityFromContext(r.Context())
	edge, err := h.service.ConnectNodes(r.Context(), identity, id, req.Source, req.Target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *Handler) handleAPIDeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	identity, _ := identityFromContext(r.Context())
	if err := h.service.DeleteEdge(r.Context(), identity, id, chi.URLParam(r, "edgeID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type apiSaveChartRequest struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

func (h *Handler) handleAPISaveChart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req apiSaveChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	identity, _ := identityFromContext(r.Context())
	v, err := h.service.SaveChart(r.Context(), identity, id, req.Nodes, req.Edges)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chartPayload(v))
}

type apiSendEmailRequest struct {
	ToEmails      []string `json:"toEmails"`
	TaskName      string   `json:"taskName"`
	FlowchartName string   `json:"flowchartName"`
	AssignedBy    string   `json:"assignedBy"`
}

func (h *Handler) handleAPISendEmail(w http.ResponseWriter, r *http.Request) {
	var req apiSendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	if len(req.ToEmails) == 0 || strings.TrimSpace(req.TaskName) == "" || strings.TrimSpace(req.FlowchartName) == "" || strings.TrimSpace(req.AssignedBy) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "missing required fields"})
		return
	}
	messageID, err := h.service.SendAssignmentMail(r.Context(), domain.Mail{
		ToEmails:      req.ToEmails,
		TaskName:      req.TaskName,
		FlowchartName: req.FlowchartName,
		AssignedBy:    req.AssignedBy,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": messageID})
}

func (h *Handler) handleAPIListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("q"), 500)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	result := make([]map[string]any, 0, len(items))
	for _, u := range items {
		result = append(result, userPayload(u))
	}
	writeJSON(w, http.StatusOK, result)
}

type apiUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) handleAPICreateUser(w http.ResponseWriter, r *http.Request) {
	var req apiUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.CreateUser(r.Context(), req.Name, req.Email, req.Role, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "user.create", "user", &v.ID)
	writeJSON(w, http.StatusOK, userPayload(v))
}

func (h *Handler) handleAPIUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req apiUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.UpdateUser(r.Context(), id, req.Name, req.Email, req.Role, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "user.update", "user", &v.ID)
	writeJSON(w, http.StatusOK, userPayload(v))
}

func (h *Handler) handleAPIDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "user.delete", "user", &id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAuditLogs(r.Context(), 500)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListNotifications(r.Context(), 500)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func chartPayload(v domain.Flowchart) map[string]any {
	return map[string]any{
		"id":        v.ID,
		"name":      v.Name,
		"category":  v.Category,
		"endDate":   v.EndDate,
		"nodes":     v.Nodes,
		"edges":     v.Edges,
		"createdAt": v.CreatedAt,
		"updatedAt": v.UpdatedAt,
	}
}

func userPayload(u domain.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + name})
		return 0, false
	}
	return uint(parsed), true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	case errors.Is(err, domain.ErrNameTaken):
		writeJSON(w, http.StatusConflict, map[string]any{"error": domain.ErrNameTaken.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeAudit(ctx context.Context, action, targetType string, targetID *uint) {
	identity, ok := identityFromContext(ctx)
	if !ok {
		h.service.WriteAudit(ctx, nil, action, targetType, targetID, "")
		return
	}
	h.service.WriteAudit(ctx, &identity.User.ID, action, targetType, targetID, "")
}
