package httpapi

import (
	"fmt"
	"net/http"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/concurrency"
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type updateRolePermissionsRequest struct {
	LastUpdatedAt string   `json:"last_updated_at"`
	Permissions   []string `json:"permissions"`
}

type assignMemberRequest struct {
	RoleID string `json:"role_id"`
}

type roleView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Permissions   []string `json:"permissions"`
	CreatedAt     string   `json:"created_at"`
	LastUpdatedAt string   `json:"last_updated_at"`
}

type memberView struct {
	UserID        string `json:"user_id"`
	RoleID        string `json:"role_id"`
	CreatedAt     string `json:"created_at"`
	LastUpdatedAt string `json:"last_updated_at"`
}

type permissionsView struct {
	OrganizationID string   `json:"organization_id"`
	RoleID         string   `json:"role_id"`
	RoleName       string   `json:"role_name"`
	Permissions    []string `json:"permissions"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	orgToken, err := a.codec.Encode(ac.OrganizationID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	roleToken, err := a.codec.Encode(ac.RoleID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, permissionsView{
		OrganizationID: orgToken,
		RoleID:         roleToken,
		RoleName:       ac.RoleName,
		Permissions:    ac.Permissions.Keys(),
	})
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.rbac.CreateRole(r.Context(), ac, req.Name, req.Description, req.Permissions)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	view, err := a.roleView(role)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), "rbac.role_created", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
		"count":   len(role.Permissions),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s/roles/%s", r.PathValue("org"), view.ID))
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleSetRolePermissions(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	roleID, err := a.decodeID(r.PathValue("role"))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	var req updateRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, err := concurrency.Parse(req.LastUpdatedAt)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	role, err := a.rbac.SetRolePermissions(r.Context(), ac, roleID, token, req.Permissions)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	view, err := a.roleView(role)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), "rbac.role_permissions_updated", map[string]any{
		"role_id": role.ID,
		"count":   len(role.Permissions),
	})
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAssignMember(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	userID, err := a.decodeID(r.PathValue("user"))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	var req assignMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	roleID, err := a.decodeID(req.RoleID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	member, err := a.rbac.AssignMember(r.Context(), ac, userID, roleID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), "rbac.member_assigned", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	writeJSON(w, http.StatusOK, memberView{
		UserID:        r.PathValue("user"),
		RoleID:        req.RoleID,
		CreatedAt:     concurrency.Format(member.CreatedAt),
		LastUpdatedAt: concurrency.Format(member.LastUpdatedAt),
	})
}

func (a *API) roleView(role auth.Role) (roleView, error) {
	token, err := a.codec.Encode(role.ID)
	if err != nil {
		return roleView{}, err
	}
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleView{
		ID:            token,
		Name:          role.Name,
		Description:   role.Description,
		Permissions:   perms,
		CreatedAt:     concurrency.Format(role.CreatedAt),
		LastUpdatedAt: concurrency.Format(role.LastUpdatedAt),
	}, nil
}
