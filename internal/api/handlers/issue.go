package handlers

import (
	"net/http"
	"strconv"
	"time"

	"opshub/internal/models"
	"opshub/internal/store"

	"github.com/gin-gonic/gin"
)

type IssueHandler struct {
	issues *store.Issues
}

func NewIssueHandler(issues *store.Issues) *IssueHandler {
	return &IssueHandler{issues: issues}
}

func (h *IssueHandler) List(c *gin.Context) {
	p := paginate(c)
	filter := store.IssueFilter{
		Severity:   models.IssueSeverity(c.Query("severity")),
		WorkflowID: c.Query("workflow_id"),
		Code:       c.Query("code"),
		Limit:      p.Limit,
		Offset:     p.Offset(),
	}
	if resolved, err := strconv.ParseBool(c.Query("resolved")); err == nil {
		open := !resolved
		filter.Open = &open
	}

	issues, total, err := h.issues.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch issues"})
		return
	}
	respondPage(c, issues, p, total)
}

func (h *IssueHandler) Get(c *gin.Context) {
	issue, err := h.issues.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookup(c, err, "Issue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": issue})
}

// Resolve closes an issue by hand. Resolving twice is a no-op.
func (h *IssueHandler) Resolve(c *gin.Context) {
	issue, err := h.issues.Resolve(c.Request.Context(), c.Param("id"), models.ResolutionManual, time.Now().UTC())
	if err != nil {
		respondLookup(c, err, "Issue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": issue})
}
