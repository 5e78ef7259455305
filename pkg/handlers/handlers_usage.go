package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetPublishedSettings serves the limit settings to the optimizer
func (h *Handler) GetPublishedSettings(c *gin.Context) {
	doc, err := h.Editor.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, len(doc.DailyLimits)+len(doc.MonthlyLimits))
	c.JSON(http.StatusOK, doc)
}

// RecordUsage counts one request and the limits it served for the calling key
func (h *Handler) RecordUsage(c *gin.Context, limitsServed int) {
	apiKey, ok := apiKeyFrom(c)
	if !ok {
		return
	}

	today := time.Now().UTC().Format("2006-01-02")

	err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count": gorm.Expr("request_count + ?", 1),
			"limits_served": gorm.Expr("limits_served + ?", limitsServed),
		}),
	}).Create(&database.APIUsage{
		KeyID:        apiKey.ID,
		Date:         today,
		RequestCount: 1,
		LimitsServed: limitsServed,
	}).Error
	if err != nil {
		h.Logger.Warn("recording api usage failed", zap.Uint("key_id", apiKey.ID), zap.Error(err))
	}
}

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKey, ok := apiKeyFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "API Key context missing", Code: "internal"})
		return
	}

	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", apiKey.ID).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Could not fetch usage details", Code: "internal"})
		return
	}

	var totalRequests, totalLimits int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalLimits += int64(u.LimitsServed)
	}

	c.JSON(http.StatusOK, gin.H{
		"key_name":      apiKey.Name,
		"usage_history": usage,
		"totals": gin.H{
			"requests":      totalRequests,
			"limits_served": totalLimits,
		},
	})
}
