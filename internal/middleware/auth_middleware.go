package middleware

import (
	"strings"

	"rentdesk/pkg/jwt"
	"rentdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件，令牌由外部认证服务签发
type AuthMiddleware struct {
	jwtManager *jwt.JWTManager
}

// NewAuthMiddleware 创建认证中间件，jwtManager 为 nil 时使用全局实例
func NewAuthMiddleware(jwtManager *jwt.JWTManager) *AuthMiddleware {
	if jwtManager == nil {
		jwtManager = jwt.GetJWTManager()
	}
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireLogin 校验 Bearer 令牌并把用户信息写入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(authHeader[7:])
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("is_admin", claims.IsAdmin)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequireAdmin 要求管理员令牌，需在 RequireLogin 之后使用
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("user_id"); !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !c.GetBool("is_admin") {
			response.Forbidden(c, "需要管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CombineAdminMiddleware 组合中间件（登录 + 管理员）
func (m *AuthMiddleware) CombineAdminMiddleware() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.RequireLogin(),
		m.RequireAdmin(),
	}
}
