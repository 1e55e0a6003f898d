package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const requestIDKey = "request_id"

// Response 统一响应信封，HTTP 状态恒为 200，业务结果看 status_code
type Response struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// NewPagination 根据总数计算总页数
func NewPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return p
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{StatusCode: CodeOK, Msg: "success", Data: data})
}

// SuccessWithPage 列表响应，附带分页信息
func SuccessWithPage(c *gin.Context, data any, pagination Pagination) {
	c.JSON(http.StatusOK, Response{StatusCode: CodeOK, Msg: "success", Data: data, Pagination: &pagination})
}

// Error 失败响应，data 中带上 request_id 便于排查
func Error(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, failure(c, code, msg))
}

// Abort 中间件拒绝请求时使用，写入失败响应并终止后续处理
func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(http.StatusOK, failure(c, code, msg))
}

func failure(c *gin.Context, code int, msg string) Response {
	resp := Response{StatusCode: code, Msg: msg}
	if id := c.GetString(requestIDKey); id != "" {
		resp.Data = gin.H{requestIDKey: id}
	}
	return resp
}
