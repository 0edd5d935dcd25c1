package middleware

import (
	"net/http"
	"strings"

	"go-share-portal/internal/model"
	"go-share-portal/internal/repository"
	"go-share-portal/pkg/logger"
	"go-share-portal/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 上下文中保存当前用户的键
const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// 验证JWT中间件，未登录直接返回 401
func AuthMiddleware(tokens *utils.TokenManager, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		user, status, msg := authenticate(c, tokens, users, tokenString)
		if user == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth 有合法令牌时设置用户，否则按匿名继续；用于公开链接
func OptionalAuth(tokens *utils.TokenManager, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err == nil && tokenString != "" {
			if user, _, _ := authenticate(c, tokens, users, tokenString); user != nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

// extractToken 优先读 Authorization 头；浏览器的 websocket 无法设置请求头，允许 access_token 查询参数
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("access_token"), nil
	}

	// 通常Authorization格式为: "Bearer token"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return "", errInvalidFormat
	}
	return parts[1], nil
}

func authenticate(c *gin.Context, tokens *utils.TokenManager, users repository.UserRepository, tokenString string) (*model.User, int, string) {
	// 解析token
	claims, err := tokens.Parse(tokenString)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid or expired token"
	}

	// 获取用户信息
	user, err := users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		logger.L.Error("Failed to load user for token", zap.Uint("userID", claims.UserID), zap.Error(err))
		return nil, http.StatusInternalServerError, "internal server error"
	}
	if user == nil || !user.Active {
		return nil, http.StatusUnauthorized, "user not found"
	}
	return user, http.StatusOK, ""
}

func setUser(c *gin.Context, user *model.User) {
	c.Set(ContextUserID, user.ID)
	c.Set(ContextUser, user)
}

// UserID 返回当前登录用户，匿名时为 0
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

type authError string

func (e authError) Error() string { return string(e) }

const errInvalidFormat = authError("invalid authorization format")
