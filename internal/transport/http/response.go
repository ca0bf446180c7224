package httptransport

import (
	"github.com/gin-gonic/gin"
)

// 错误响应体使用的字段名；不同接口沿用各自客户端已依赖的字段
const (
	keyError   = "error"
	keyMessage = "message"
)

// writeError 写入 {key: msg} 形式的错误响应
func writeError(c *gin.Context, status int, key, msg string) {
	c.AbortWithStatusJSON(status, gin.H{key: msg})
}

// Error 通用错误响应 {"error": msg}
func Error(c *gin.Context, status int, msg string) {
	writeError(c, status, keyError, msg)
}

// Result 访问码接口的 {success, message} 响应
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}
