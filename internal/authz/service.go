package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
	// roleRegistry 所有已登记角色都挂在该分组下，用于列出空策略的角色
	roleRegistry = "role:__registry__"
)

const routeRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var (
	ErrUnavailable    = errors.New("authz service unavailable")
	ErrRoleRequired   = errors.New("role is required")
	ErrActionRequired = errors.New("action is required")
	ErrReservedRole   = errors.New("reserved role is not allowed")
)

// Policy 路由授权策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service 管理端路由授权
// 令牌由外部身份服务签发，这里只根据令牌携带的角色判定路由是否放行
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 加载 casbin_rule 表中的策略
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(routeRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// Enforce 单个主体的授权判断
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceRoles 令牌中任一角色放行即通过，无法识别的角色直接跳过
func (s *Service) EnforceRoles(roles []string, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	object, action := NormalizeObject(obj), NormalizeAction(act)
	seen := make(map[string]struct{}, len(roles))
	for _, raw := range roles {
		role, err := NormalizeRole(raw)
		if err != nil || role == roleRegistry {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		allowed, err := s.enforcer.Enforce(role, object, action)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// EnsureRole 登记角色并返回规范化名称
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if normalized == roleRegistry {
		return "", ErrReservedRole
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	// AddNamedGroupingPolicy 对已存在的规则返回 false，不视为错误
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleRegistry); err != nil {
		return "", fmt.Errorf("register role failed: %w", err)
	}
	return normalized, nil
}

// ListRoles 已登记的角色（包括仅作为父角色出现的）
func (s *Service) ListRoles() ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	groupings, err := s.enforcer.GetNamedGroupingPolicy("g")
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	set := make(map[string]struct{})
	for _, grouping := range groupings {
		for _, item := range grouping {
			if strings.HasPrefix(item, rolePrefix) && item != roleRegistry {
				set[item] = struct{}{}
			}
		}
	}
	return sortedKeys(set), nil
}

// GrantRolePolicy 授予策略，角色不存在时自动登记
func (s *Service) GrantRolePolicy(role, object, action string) error {
	rule, err := newPolicy(role, object, action)
	if err != nil {
		return err
	}
	if _, err := s.EnsureRole(rule.Subject); err != nil {
		return err
	}
	if _, err := s.enforcer.AddPolicy(rule.Subject, rule.Object, rule.Action); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销策略，策略不存在时为空操作
func (s *Service) RevokeRolePolicy(role, object, action string) error {
	rule, err := newPolicy(role, object, action)
	if err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.RemovePolicy(rule.Subject, rule.Object, rule.Action); err != nil {
		return fmt.Errorf("revoke policy failed: %w", err)
	}
	return nil
}

// GetRolePolicies 角色自身及继承链上的全部策略
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	inherited, err := s.enforcer.GetImplicitRolesForUser(normalized)
	if err != nil {
		return nil, fmt.Errorf("resolve role inheritance failed: %w", err)
	}

	seen := make(map[Policy]struct{})
	policies := make([]Policy, 0)
	for _, subject := range append([]string{normalized}, inherited...) {
		if subject == roleRegistry {
			continue
		}
		rows, err := s.enforcer.GetFilteredPolicy(0, subject)
		if err != nil {
			return nil, fmt.Errorf("get role policies failed: %w", err)
		}
		for _, row := range rows {
			if len(row) < 3 {
				continue
			}
			p := Policy{Subject: strings.TrimSpace(row[0]), Object: NormalizeObject(row[1]), Action: NormalizeAction(row[2])}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			policies = append(policies, p)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		a, b := policies[i], policies[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Action < b.Action
	})
	return policies, nil
}

// PoliciesForRoles 多个角色的有效策略并集，无法识别的角色被忽略
func (s *Service) PoliciesForRoles(roles []string) ([]Policy, error) {
	seen := make(map[Policy]struct{})
	merged := make([]Policy, 0)
	for _, role := range roles {
		policies, err := s.GetRolePolicies(role)
		if errors.Is(err, ErrRoleRequired) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, p := range policies {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				merged = append(merged, p)
			}
		}
	}
	return merged, nil
}

func newPolicy(role, object, action string) (Policy, error) {
	subject, err := NormalizeRole(role)
	if err != nil {
		return Policy{}, err
	}
	act := NormalizeAction(action)
	if act == "" {
		return Policy{}, ErrActionRequired
	}
	return Policy{Subject: subject, Object: NormalizeObject(object), Action: act}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeRole 补齐 role: 前缀，空白替换为下划线
func NormalizeRole(role string) (string, error) {
	name := strings.Join(strings.Fields(role), "_")
	name = strings.TrimPrefix(name, rolePrefix)
	if name == "" {
		return "", ErrRoleRequired
	}
	return rolePrefix + name, nil
}

// NormalizeObject 路由模板去掉 /api/v1 前缀
func NormalizeObject(object string) string {
	path := strings.TrimSpace(object)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	switch {
	case path == apiV1Prefix:
		return "/"
	case strings.HasPrefix(path, apiV1Prefix+"/"):
		return strings.TrimPrefix(path, apiV1Prefix)
	default:
		return path
	}
}

// NormalizeAction HTTP 方法统一大写
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
