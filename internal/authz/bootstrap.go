package authz

import "fmt"

// 预置角色
const (
	RoleAnalyst        = "analyst"
	RoleFraudReviewer  = "fraud_reviewer"
	RolePartnerManager = "partner_manager"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleAnalyst,
			Policies: []Policy{
				{Object: "/admin/analytics/*", Action: "GET"},
				{Object: "/admin/clicks", Action: "GET"},
				{Object: "/admin/clicks/:tracking_id", Action: "GET"},
				{Object: "/admin/partners", Action: "GET"},
				{Object: "/admin/products", Action: "GET"},
			},
		},
		{
			Role:     RoleFraudReviewer,
			Inherits: []string{RoleAnalyst},
			Policies: []Policy{
				{Object: "/admin/clicks/:tracking_id/fraud", Action: "GET"},
			},
		},
		{
			Role:     RolePartnerManager,
			Inherits: []string{RoleAnalyst},
			Policies: []Policy{
				{Object: "/admin/partners", Action: "POST"},
				{Object: "/admin/partners/:id", Action: "PUT"},
				{Object: "/admin/products", Action: "POST"},
				{Object: "/admin/products/:id", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，重复执行无副作用
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			rule, err := newPolicy(role, policy.Object, policy.Action)
			if err != nil {
				return fmt.Errorf("builtin policy for %s: %w", role, err)
			}
			if _, err := s.enforcer.AddPolicy(rule.Subject, rule.Object, rule.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
