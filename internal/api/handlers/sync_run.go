package handlers

import (
	"net/http"

	"opshub/internal/models"
	"opshub/internal/store"

	"github.com/gin-gonic/gin"
)

type SyncRunHandler struct {
	runs *store.SyncRuns
}

func NewSyncRunHandler(runs *store.SyncRuns) *SyncRunHandler {
	return &SyncRunHandler{runs: runs}
}

func (h *SyncRunHandler) List(c *gin.Context) {
	p := paginate(c)
	runs, total, err := h.runs.List(c.Request.Context(), store.SyncRunFilter{
		JobKind:       c.Query("kind"),
		IntegrationID: c.Query("integration"),
		BusinessCode:  c.Query("business"),
		Status:        models.SyncRunStatus(c.Query("status")),
		Limit:         p.Limit,
		Offset:        p.Offset(),
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync runs"})
		return
	}
	respondPage(c, runs, p, total)
}

func (h *SyncRunHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookup(c, err, "Sync run")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run, "duration_seconds": run.Duration().Seconds()})
}
