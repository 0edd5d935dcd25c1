package api

import (
	"context"
	"net/http"
	"strconv"

	"go-share-portal/internal/model"
	"go-share-portal/internal/service"

	"github.com/gin-gonic/gin"
)

type ShareHandler struct {
	shares   *service.ShareManager
	resolver *service.PermissionResolver
	effects  *service.EffectDispatcher
}

func NewShareHandler(shares *service.ShareManager, resolver *service.PermissionResolver, effects *service.EffectDispatcher) *ShareHandler {
	return &ShareHandler{shares: shares, resolver: resolver, effects: effects}
}

type createShareRequest struct {
	ItemPath     string  `json:"item_path" binding:"required"`
	ItemName     string  `json:"item_name"`
	IsFolder     bool    `json:"is_folder"`
	SharedWithID uint    `json:"shared_with_id" binding:"required"`
	Permission   string  `json:"permission" binding:"required"`
	Message      *string `json:"message"`
}

type updateShareRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// CreateShare 分享给另一个用户，重复分享时覆盖权限和留言
func (h *ShareHandler) CreateShare(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	level, err := model.ParsePermissionLevel(req.Permission)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "permission"})
		return
	}

	res, err := h.shares.Create(c.Request.Context(), service.CreateShareRequest{
		OwnerID:      userID,
		ItemPath:     req.ItemPath,
		ItemName:     req.ItemName,
		IsFolder:     req.IsFolder,
		SharedWithID: req.SharedWithID,
		Level:        level,
		Message:      req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, res.Effects)

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"share": res.Share, "created": res.Created})
}

func (h *ShareHandler) UpdateShare(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	shareID, ok := getIDFromParam(c, "id")
	if !ok {
		return
	}

	var req updateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	level, err := model.ParsePermissionLevel(req.Permission)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "permission"})
		return
	}

	res, err := h.shares.Update(c.Request.Context(), userID, shareID, level)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, res.Effects)
	c.JSON(http.StatusOK, gin.H{"share": res.Share})
}

func (h *ShareHandler) DeleteShare(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	shareID, ok := getIDFromParam(c, "id")
	if !ok {
		return
	}

	effects, err := h.shares.Delete(c.Request.Context(), userID, shareID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, effects)
	c.JSON(http.StatusOK, gin.H{"message": "Share removed"})
}

// ListOwned 我分享出去的；带 path 参数时只看这个路径
func (h *ShareHandler) ListOwned(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var (
		shares []model.FileShare
		err    error
	)
	if p := c.Query("path"); p != "" {
		shares, err = h.shares.ListForPath(c.Request.Context(), userID, p)
	} else {
		shares, err = h.shares.ListByOwner(c.Request.Context(), userID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": emptyIfNil(shares)})
}

// ListReceived 别人分享给我的
func (h *ShareHandler) ListReceived(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	shares, err := h.shares.ListByGrantee(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": emptyIfNil(shares)})
}

// SearchUsers 分享对话框里按用户名或邮箱查找用户
func (h *ShareHandler) SearchUsers(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	users, err := h.shares.SearchCandidateUsers(c.Request.Context(), userID, c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
			"avatar":   u.Avatar,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// CheckAccess 查询当前用户对某个路径的有效权限
func (h *ShareHandler) CheckAccess(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	p := c.Query("path")
	if p == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required", "field": "path"})
		return
	}
	required := model.PermissionReadOnly
	if lv := c.Query("level"); lv != "" {
		parsed, err := model.ParsePermissionLevel(lv)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "level"})
			return
		}
		required = parsed
	}

	ctx := c.Request.Context()
	level, err := h.resolver.EffectiveLevel(ctx, userID, p)
	if err != nil {
		// 查询失败时按无权限处理
		_ = c.Error(err)
		level = model.PermissionNone
	}
	c.JSON(http.StatusOK, gin.H{
		"path":    p,
		"allowed": err == nil && level >= required,
		"level":   level.String(),
	})
}

func (h *ShareHandler) dispatch(c *gin.Context, effects service.Effects) {
	// 请求结束不应中断通知和审计
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.effects.Dispatch(ctx, effects); err != nil {
		_ = c.Error(err)
	}
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
