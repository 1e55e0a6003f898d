package shared

import (
	"strconv"
	"strings"
	"time"

	"github.com/finlink-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextSubjectKey = "admin_subject"
	ContextRolesKey   = "admin_roles"
	ContextIsSuperKey = "admin_is_super"
)

// ParseUintParam 读取路径上的正整数 ID，非法时直接写错误响应。
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		RespondError(c, response.CodeBadRequest, MsgInvalidID, nil)
		return 0, false
	}
	return uint(value), true
}

// ParseUintQuery 读取可选的正整数查询参数，缺省为 0。
func ParseUintQuery(c *gin.Context, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// ParseTimeNullable 解析 RFC3339 或 YYYY-MM-DD，空串返回 nil。
func ParseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseBoolQuery 读取可选布尔查询参数
func ParseBoolQuery(c *gin.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ContextRoles 读取鉴权中间件写入的角色列表
func ContextRoles(c *gin.Context) []string {
	value, ok := c.Get(ContextRolesKey)
	if !ok {
		return nil
	}
	roles, _ := value.([]string)
	return roles
}

// ContextIsSuper 当前令牌是否为超级管理员
func ContextIsSuper(c *gin.Context) bool {
	value, ok := c.Get(ContextIsSuperKey)
	if !ok {
		return false
	}
	flag, _ := value.(bool)
	return flag
}
