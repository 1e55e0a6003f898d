package admin

import (
	"strings"

	"github.com/finlink-next/internal/authz"
	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type authzMeView struct {
	Subject  string         `json:"subject"`
	IsSuper  bool           `json:"is_super"`
	Roles    []string       `json:"roles"`
	Policies []authz.Policy `json:"policies"`
}

// GetAuthzMe 当前令牌的身份与有效策略
func (h *Handler) GetAuthzMe(c *gin.Context) {
	roles := shared.ContextRoles(c)
	policies, err := h.AuthzService.PoliciesForRoles(roles)
	if err != nil {
		respondError(c, response.CodeInternal, shared.MsgAuthzFetchFailed, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	response.Success(c, authzMeView{
		Subject:  c.GetString(shared.ContextSubjectKey),
		IsSuper:  shared.ContextIsSuper(c),
		Roles:    roles,
		Policies: policies,
	})
}

// ListAuthzRoles 角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, shared.MsgAuthzFetchFailed, err)
		return
	}
	response.Success(c, roles)
}

// GetAuthzRolePolicies 角色策略（含继承）
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := strings.TrimSpace(c.Query("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondMappedError(c, err, authzErrorRules, shared.MsgAuthzFetchFailed)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	h.changeAuthzPolicy(c, "granted", h.AuthzService.GrantRolePolicy)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	h.changeAuthzPolicy(c, "revoked", h.AuthzService.RevokeRolePolicy)
}

func (h *Handler) changeAuthzPolicy(c *gin.Context, verb string, apply func(role, object, action string) error) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	if err := apply(req.Role, req.Object, req.Action); err != nil {
		respondMappedError(c, err, authzErrorRules, shared.MsgAuthzSaveFailed)
		return
	}
	shared.RequestLog(c).Infow("admin_authz_policy_"+verb,
		"operator", c.GetString(shared.ContextSubjectKey),
		"role", req.Role,
		"object", authz.NormalizeObject(req.Object),
		"action", authz.NormalizeAction(req.Action),
	)
	response.Success(c, gin.H{verb: true})
}
