package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tips-service/internal/domain"
	"tips-service/internal/service"
)

const (
	// SessionCookie carries the session token between requests.
	SessionCookie = "TIPS_SESSION"

	usernameKey = "username"
	tokenKey    = "sessionToken"
)

// SessionManager is the session lifecycle used by the handlers.
type SessionManager interface {
	Create(ctx context.Context, username string) (domain.Session, error)
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string)
	TTL() time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	tips     service.TipService
	sessions SessionManager
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, tips service.TipService, sessions SessionManager, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:    users,
		tips:     tips,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))

	router.GET("/", h.index)
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	router.POST("/newUser", h.createUser)
	router.POST("/login", h.login)
	router.POST("/logout", h.logout)

	authed := router.Group("/", h.requireSession())
	{
		authed.GET("/tips", h.listTips)
		authed.POST("/tip", h.createTip)
		authed.GET("/tip/:id", h.getTip)
		authed.PATCH("/tip/:id", h.updateTip)
		authed.GET("/tip/:id/history", h.tipHistory)
		authed.GET("/tip/:id/comments", h.tipComments)
		authed.POST("/tip/:id/comment", h.createComment)
		authed.GET("/comment/:id", h.getComment)
		authed.PATCH("/comment/:id", h.updateComment)
		authed.GET("/comment/:id/history", h.commentHistory)
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tipRequest struct {
	Message string `json:"message" binding:"required"`
}

type commentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("request")
	}
}

// requireSession rejects requests without a valid session with 403.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		username, err := h.sessions.Validate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(usernameKey, username)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// sessionToken reads the token from the session cookie, falling back to a
// bearer Authorization header.
func sessionToken(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

func (h *Handler) startSession(c *gin.Context, username string) bool {
	sess, err := h.sessions.Create(c.Request.Context(), username)
	if err != nil {
		writeError(c, err)
		return false
	}
	c.SetCookie(SessionCookie, sess.Token, cookieMaxAge(h.sessions.TTL()), "/", "", false, true)
	return true
}

// cookieMaxAge rounds ttl up to whole seconds so the cookie never expires
// before the server-side session does.
func cookieMaxAge(ttl time.Duration) int {
	return int((ttl + time.Second - 1) / time.Second)
}

func (h *Handler) index(c *gin.Context) {
	c.JSON(http.StatusOK, IndexResponse{
		LoginRef:      "/login",
		CreateUserRef: "/newUser",
		LogoutRef:     "/logout",
		GetTipsRef:    "/tips",
		PostNewTipRef: "/tip",
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.startSession(c, user.Username) {
		return
	}
	h.logger.WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusOK, UserResponse{Username: user.Username})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.startSession(c, user.Username) {
		return
	}
	c.JSON(http.StatusOK, UserResponse{Username: user.Username})
}

func (h *Handler) logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		h.sessions.Revoke(c.Request.Context(), token)
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": "ok"})
}

func (h *Handler) listTips(c *gin.Context) {
	tips, err := h.tips.ListTips(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]TipResponse, len(tips))
	for i := range tips {
		resp[i] = tipToResponse(domain.Tip{Entity: tips[i]}, false)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createTip(c *gin.Context) {
	var req tipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tip, err := h.tips.NewTip(c.Request.Context(), c.GetString(usernameKey), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	base := "/tip/" + strconv.FormatUint(tip.ID, 10)
	c.JSON(http.StatusOK, NewTipResponse{
		TipID:             tip.ID,
		TipRef:            base,
		TipCommentsRef:    base + "/comments",
		PostNewCommentRef: base + "/comment",
		TipHistoryRef:     base + "/history",
	})
}

func (h *Handler) getTip(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	include, err := strconv.ParseBool(c.DefaultQuery("includeComments", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag includeComments"})
		return
	}

	tip, err := h.tips.GetTip(c.Request.Context(), id, include)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tipToResponse(*tip, include))
}

func (h *Handler) updateTip(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req tipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tip, err := h.tips.UpdateTip(c.Request.Context(), id, c.GetString(usernameKey), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tipToResponse(domain.Tip{Entity: tip}, false))
}

func (h *Handler) tipHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	versions, err := h.tips.TipHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := TipHistoryResponse{TipID: id, Versions: make([]TipVersionResponse, len(versions))}
	for i, v := range versions {
		resp.Versions[i] = TipVersionResponse{
			Username: v.Owner,
			Message:  v.Content,
			Modified: formatTime(v.ModifiedAt),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) tipComments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	comments, err := h.tips.CommentsOf(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentsToResponse(comments))
}

func (h *Handler) createComment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.tips.NewComment(c.Request.Context(), id, c.GetString(usernameKey), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}

	base := "/comment/" + strconv.FormatUint(comment.ID, 10)
	c.JSON(http.StatusOK, NewCommentResponse{
		CommentID:         comment.ID,
		CommentRef:        base,
		CommentHistoryRef: base + "/history",
	})
}

func (h *Handler) getComment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	comment, err := h.tips.GetComment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentToResponse(comment))
}

func (h *Handler) updateComment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.tips.UpdateComment(c.Request.Context(), id, c.GetString(usernameKey), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentToResponse(comment))
}

func (h *Handler) commentHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	versions, err := h.tips.CommentHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := CommentHistoryResponse{CommentID: id, Versions: make([]CommentVersionResponse, len(versions))}
	for i, v := range versions {
		resp.Versions[i] = CommentVersionResponse{
			Username: v.Owner,
			Comment:  v.Content,
			Modified: formatTime(v.ModifiedAt),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to status codes one to one.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
