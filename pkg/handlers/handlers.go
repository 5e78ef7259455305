package handlers

import (
	"errors"
	"net/http"

	"github.com/arnavshah/limits-settings-go/pkg/auth"
	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/arnavshah/limits-settings-go/pkg/editor"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// Handler contains dependencies for the route handlers
type Handler struct {
	DB     *gorm.DB
	Auth   *auth.Manager
	Editor *editor.Editor
	Inbox  *editor.Inbox
	Logger *zap.Logger
}

// Routes registers every endpoint on r
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Limits Settings API",
			"version": Version,
		})
	})
	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/settings", h.GetSettings)
		api.GET("/violations", h.GetViolations)
		api.GET("/notifications", h.GetNotifications)
		api.GET("/staff/active", h.GetActiveStaff)

		api.POST("/limits/escape", h.Escape)
		api.POST("/limits/:kind", h.CreateLimit)
		api.PATCH("/limits/:kind/:id", h.UpdateLimit)
		api.PUT("/limits/:kind/:id/scope", h.SetScope)
		api.POST("/limits/:kind/:id/days/:day", h.ToggleDay)
		api.POST("/limits/:kind/:id/targets/:target", h.ToggleTarget)
		api.GET("/limits/:kind/:id/targets", h.GetTargets)
		api.POST("/limits/:kind/:id/edit", h.BeginEdit)
		api.POST("/limits/:kind/edit/commit", h.CommitEdit)
		api.POST("/limits/:kind/edit/cancel", h.CancelEdit)
		api.DELETE("/limits/:kind/:id", h.RequestDelete)

		api.POST("/deletions/confirm", h.ConfirmDelete)
		api.POST("/deletions/cancel", h.CancelDelete)
	}

	v1 := r.Group("/api/v1")
	v1.Use(h.APIKeyMiddleware())
	{
		v1.GET("/settings", h.GetPublishedSettings)
		v1.GET("/usage", h.GetMyUsage)
	}
}

// Login handles operator login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	token, expiresAt, err := h.Auth.Login(h.DB, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidPassword) {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid credentials", Code: "unauthorized"})
		return
	}
	if err != nil {
		h.Logger.Error("could not create token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Could not create token", Code: "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expiresAt,
	})
}

// GenerateKey issues a new optimizer API key
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	key, rec, err := h.Auth.IssueAPIKey(h.DB, req.Name)
	if err != nil {
		h.Logger.Error("could not create key record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Could not create key record", Code: "internal"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":   rec.ID,
		"name": rec.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.Order("id").Find(&keys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Could not list keys", Code: "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	res := h.DB.Delete(&database.APIKey{}, "id = ?", id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Could not delete key", Code: "internal"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Key not found", Code: "NotFound"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Could not fetch usage", Code: "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}
