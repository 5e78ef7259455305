package handlers

import (
	"net/http"
	"strconv"

	"github.com/arnavshah/limits-settings-go/pkg/limits"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/gin-gonic/gin"
)

func kindParam(c *gin.Context) (models.Kind, bool) {
	kind, err := models.ParseKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return kind, true
}

// GetSettings returns the document with open sessions, warnings and violations
func (h *Handler) GetSettings(c *gin.Context) {
	view, err := h.Editor.View(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetViolations returns the violations of the last rejected daily save
func (h *Handler) GetViolations(c *gin.Context) {
	v := h.Editor.Violations()
	if v == nil {
		v = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"violations": v})
}

func (h *Handler) GetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.Inbox.List()})
}

func (h *Handler) GetActiveStaff(c *gin.Context) {
	staff, err := h.Editor.ActiveStaff(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": staff})
}

// CreateLimit adds a limit with default values and opens an edit on it
func (h *Handler) CreateLimit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		created any
		err     error
	)
	switch kind {
	case models.KindDaily:
		created, err = h.Editor.CreateDaily(ctx)
	case models.KindMonthly:
		created, err = h.Editor.CreateMonthly(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateLimit applies a partial update. limitConfig, when present, replaces
// the whole payload.
func (h *Handler) UpdateLimit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	var err error
	switch kind {
	case models.KindDaily:
		var p limits.Patch[models.DailyConfig]
		if err := c.ShouldBindJSON(&p); err != nil {
			badRequest(c, err.Error())
			return
		}
		err = h.Editor.UpdateDaily(ctx, id, p)
	case models.KindMonthly:
		var p limits.Patch[models.MonthlyConfig]
		if err := c.ShouldBindJSON(&p); err != nil {
			badRequest(c, err.Error())
			return
		}
		err = h.Editor.UpdateMonthly(ctx, id, p)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetScope changes who a limit applies to and clears its targets
func (h *Handler) SetScope(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req struct {
		Scope models.Scope `json:"scope" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Editor.SetScope(c.Request.Context(), kind, c.Param("id"), req.Scope); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleDay(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	if kind != models.KindDaily {
		badRequest(c, "days of week only exist on daily limits")
		return
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		badRequest(c, "day must be an integer 0-6")
		return
	}
	if err := h.Editor.ToggleDay(c.Request.Context(), c.Param("id"), day); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleTarget(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	if err := h.Editor.ToggleTarget(c.Request.Context(), kind, c.Param("id"), c.Param("target")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTargets lists the selectable targets of a limit and who it targets now
func (h *Handler) GetTargets(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	targets, err := h.Editor.Targets(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, targets)
}

func (h *Handler) BeginEdit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	started, err := h.Editor.BeginEdit(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}

func (h *Handler) CommitEdit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	closed, err := h.Editor.Commit(kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committed": closed})
}

func (h *Handler) CancelEdit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	closed, err := h.Editor.Cancel(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": closed})
}

// Escape cancels whichever edit is open
func (h *Handler) Escape(c *gin.Context) {
	kind, err := h.Editor.Escape(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": kind})
}

// RequestDelete asks for confirmation before a limit is removed
func (h *Handler) RequestDelete(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	p, err := h.Editor.RequestDelete(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pendingDeletion": p})
}

func (h *Handler) ConfirmDelete(c *gin.Context) {
	p, err := h.Editor.ConfirmDelete(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": p})
}

func (h *Handler) CancelDelete(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.Editor.CancelDelete()})
}
