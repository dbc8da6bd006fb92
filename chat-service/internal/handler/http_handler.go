package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Handler handles REST requests for the chat API.
type Handler struct {
	authService    service.AuthService
	userService    service.UserService
	groupService   service.GroupService
	messageService service.MessageService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	authService service.AuthService,
	userService service.UserService,
	groupService service.GroupService,
	messageService service.MessageService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		authService:    authService,
		userService:    userService,
		groupService:   groupService,
		messageService: messageService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Signup)
			auth.POST("/login", h.Login)
			auth.POST("/logout", h.authMiddleware.RequireAuth(), h.Logout)
		}

		users := api.Group("/users")
		users.Use(h.authMiddleware.RequireAuth())
		{
			users.GET("/me", h.GetMe)
			users.GET("", h.ListUsers)
			users.GET("/:id", h.GetUser)
			users.PATCH("/:id", h.UpdateUser)
		}

		groups := api.Group("/groups")
		groups.Use(h.authMiddleware.RequireAuth())
		{
			groups.POST("", h.CreateGroup)
			groups.GET("", h.ListGroups)
			groups.GET("/:id", h.GetGroup)
			groups.DELETE("/:id", h.DeleteGroup)
			groups.POST("/:id/members", h.AddMembers)
			groups.DELETE("/:id/members/:userId", h.RemoveMember)
		}

		messages := api.Group("/messages")
		messages.Use(h.authMiddleware.RequireAuth())
		{
			messages.GET("/direct/:userId", h.DirectHistory)
			messages.DELETE("/direct/:userId", h.ClearDirect)
			messages.GET("/group/:groupId", h.GroupHistory)
			messages.DELETE("/group/:groupId", h.ClearGroup)
			messages.GET("/unread", h.UnreadCounts)
			messages.POST("/read/:conversationId", h.MarkRead)
		}
	}
}

// Signup handles user registration.
func (h *Handler) Signup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid signup request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Signup(ctx, &req)
	if err != nil {
		writeError(c, err, "signup failed")
		return
	}

	response.Created(c, result)
}

// Login handles user login.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(ctx, &req)
	if err != nil {
		writeError(c, err, "login failed")
		return
	}

	response.Success(c, result)
}

// Logout revokes the caller's tokens.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		writeError(c, err, "logout failed")
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "get current user failed")
		return
	}
	response.Success(c, user)
}

// ListUsers returns everyone but the caller with the caller's unread counts.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "list users failed")
		return
	}
	response.Success(c, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "get user failed")
		return
	}
	response.Success(c, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid update user request")
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.userService.UpdateUser(ctx, middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		writeError(c, err, "update user failed")
		return
	}
	response.Success(c, user)
}

func (h *Handler) CreateGroup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid create group request")
		response.BadRequest(c, err.Error())
		return
	}

	group, err := h.groupService.CreateGroup(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		writeError(c, err, "create group failed")
		return
	}
	response.Created(c, group)
}

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.ListGroups(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "list groups failed")
		return
	}
	response.Success(c, groups)
}

func (h *Handler) GetGroup(c *gin.Context) {
	group, err := h.groupService.GetGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "get group failed")
		return
	}
	response.Success(c, group)
}

func (h *Handler) AddMembers(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid add members request")
		response.BadRequest(c, err.Error())
		return
	}

	group, err := h.groupService.AddMembers(ctx, middleware.GetUserID(c), c.Param("id"), req.MemberIDs)
	if err != nil {
		writeError(c, err, "add members failed")
		return
	}
	response.Success(c, group)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	group, err := h.groupService.RemoveMember(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		writeError(c, err, "remove member failed")
		return
	}
	response.Success(c, group)
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.groupService.DeleteGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		writeError(c, err, "delete group failed")
		return
	}
	response.Success(c, gin.H{"message": "group deleted"})
}

func (h *Handler) DirectHistory(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.messageService.DirectHistory(c.Request.Context(), middleware.GetUserID(c), c.Param("userId"), page, limit)
	if err != nil {
		writeError(c, err, "direct history failed")
		return
	}
	response.Paginated(c, result.Messages, result.Page, result.Limit, int(result.Total))
}

func (h *Handler) GroupHistory(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.messageService.GroupHistory(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"), page, limit)
	if err != nil {
		writeError(c, err, "group history failed")
		return
	}
	response.Paginated(c, result.Messages, result.Page, result.Limit, int(result.Total))
}

func (h *Handler) ClearDirect(c *gin.Context) {
	n, err := h.messageService.ClearDirect(c.Request.Context(), middleware.GetUserID(c), c.Param("userId"))
	if err != nil {
		writeError(c, err, "clear direct conversation failed")
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *Handler) ClearGroup(c *gin.Context) {
	n, err := h.messageService.ClearGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"))
	if err != nil {
		writeError(c, err, "clear group conversation failed")
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *Handler) UnreadCounts(c *gin.Context) {
	counts, err := h.messageService.UnreadCounts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "unread counts failed")
		return
	}
	response.Success(c, counts)
}

func (h *Handler) MarkRead(c *gin.Context) {
	conversationID := c.Param("conversationId")
	at, err := h.messageService.MarkRead(c.Request.Context(), middleware.GetUserID(c), conversationID)
	if err != nil {
		writeError(c, err, "mark read failed")
		return
	}
	response.Success(c, gin.H{"conversation_id": conversationID, "last_read_at": at})
}

// pageParams reads ?page and ?limit. Missing or malformed values are zero and
// fall back to the service defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return page, limit
}

func writeError(c *gin.Context, err error, logMsg string) {
	msg := domain.PublicMessage(err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(c, msg)
	case errors.Is(err, domain.ErrUnauthorized):
		response.Unauthorized(c, msg)
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(c, msg)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, msg)
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(c, msg)
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(logMsg)
		response.InternalError(c, msg)
	}
}
