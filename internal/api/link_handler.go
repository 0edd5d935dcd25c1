package api

import (
	"context"
	"net/http"
	"time"

	"go-share-portal/internal/middleware"
	"go-share-portal/internal/model"
	"go-share-portal/internal/service"

	"github.com/gin-gonic/gin"
)

// HeaderLinkPassword GET 访问公开链接时通过请求头提交密码，避免出现在 URL 里
const HeaderLinkPassword = "X-Link-Password"

type LinkHandler struct {
	links     *service.LinkManager
	validator *service.LinkAccessValidator
	effects   *service.EffectDispatcher
}

func NewLinkHandler(links *service.LinkManager, validator *service.LinkAccessValidator, effects *service.EffectDispatcher) *LinkHandler {
	return &LinkHandler{links: links, validator: validator, effects: effects}
}

type createLinkRequest struct {
	Path           string  `json:"path" binding:"required"`
	Password       *string `json:"password"`
	ExpiresInHours *int    `json:"expires_in_hours"`
	MaxAccess      *int64  `json:"max_access"`
	RequireLogin   bool    `json:"require_login"`
}

type linkResponse struct {
	ID           uint       `json:"id"`
	Token        string     `json:"token"`
	URL          string     `json:"url"`
	Path         string     `json:"path"`
	HasPassword  bool       `json:"has_password"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxAccess    *int64     `json:"max_access,omitempty"`
	AccessCount  int64      `json:"access_count"`
	RequireLogin bool       `json:"require_login"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (h *LinkHandler) toResponse(l *model.LinkShare) linkResponse {
	return linkResponse{
		ID:           l.ID,
		Token:        l.Token,
		URL:          h.links.ShareURL(l.Token),
		Path:         l.Path,
		HasPassword:  l.HasPassword(),
		ExpiresAt:    l.ExpiresAt,
		MaxAccess:    l.MaxAccess,
		AccessCount:  l.AccessCount,
		RequireLogin: l.RequireLogin,
		CreatedAt:    l.CreatedAt,
	}
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.links.Create(c.Request.Context(), service.CreateLinkRequest{
		OwnerID:        userID,
		Path:           req.Path,
		Password:       req.Password,
		ExpiresInHours: req.ExpiresInHours,
		MaxAccess:      req.MaxAccess,
		RequireLogin:   req.RequireLogin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, res.Effects)
	c.JSON(http.StatusCreated, gin.H{"link": h.toResponse(res.Link)})
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	links, err := h.links.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]linkResponse, 0, len(links))
	for i := range links {
		out = append(out, h.toResponse(&links[i]))
	}
	c.JSON(http.StatusOK, gin.H{"links": out})
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	linkID, ok := getIDFromParam(c, "id")
	if !ok {
		return
	}
	effects, err := h.links.Delete(c.Request.Context(), userID, linkID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, effects)
	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// AccessLink 公开链接入口。GET 从请求头取密码，POST 从 JSON body 取密码。
// 任何一道检查没通过时只返回原因，不返回路径和元数据。
func (h *LinkHandler) AccessLink(c *gin.Context) {
	password := c.GetHeader(HeaderLinkPassword)
	if c.Request.Method == http.MethodPost {
		var body struct {
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		password = body.Password
	}

	out, err := h.validator.Validate(c.Request.Context(), service.LinkAccessRequest{
		Token:    c.Param("token"),
		Password: password,
		ActorID:  middleware.UserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !out.Granted() {
		denyErr := out.Err()
		c.JSON(statusFor(denyErr), gin.H{
			"error":  denyErr.Error(),
			"reason": out.Kind.String(),
		})
		return
	}

	h.dispatch(c, out.Effects)
	body := gin.H{"path": out.Path}
	if out.Meta != nil {
		body["meta"] = out.Meta
	}
	c.JSON(http.StatusOK, body)
}

func (h *LinkHandler) dispatch(c *gin.Context, effects service.Effects) {
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.effects.Dispatch(ctx, effects); err != nil {
		_ = c.Error(err)
	}
}
