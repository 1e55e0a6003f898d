package public

import "github.com/finlink-next/internal/provider"

// Handler 公开追踪接口处理器入口
// 说明：链接生成、点击记录、转化回调与跳转，不要求登录态。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
