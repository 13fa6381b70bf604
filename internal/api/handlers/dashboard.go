package handlers

import (
	"context"
	"net/http"

	"opshub/internal/models"
	"opshub/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	db   *gorm.DB
	runs *store.SyncRuns
}

func NewDashboardHandler(db *gorm.DB, runs *store.SyncRuns) *DashboardHandler {
	return &DashboardHandler{db: db, runs: runs}
}

type groupCount struct {
	GroupKey string
	Total    int64
}

// Summary is the landing page: row counts per table, open issues by
// severity, integration health and the latest run of every job.
func (h *DashboardHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	business := c.Query("business")

	counts := gin.H{}
	for name, model := range map[string]interface{}{
		"products":          &models.Product{},
		"orders":            &models.Order{},
		"contacts":          &models.Contact{},
		"campaigns":         &models.Campaign{},
		"chats":             &models.ChatTranscript{},
		"emails":            &models.EmailMessage{},
		"merchant_statuses": &models.MerchantProductStatus{},
		"invoices":          &models.Invoice{},
	} {
		n, err := h.count(ctx, model, business)
		if err != nil {
			h.fail(c, err)
			return
		}
		counts[name] = n
	}

	var notReady int64
	if err := h.scoped(ctx, &models.Product{}, business).Where("feed_ready = ?", false).Count(&notReady).Error; err != nil {
		h.fail(c, err)
		return
	}
	var disapproved int64
	if err := h.scoped(ctx, &models.MerchantProductStatus{}, business).Where("is_disapproved = ?", true).Count(&disapproved).Error; err != nil {
		h.fail(c, err)
		return
	}

	issues, err := h.grouped(h.db.WithContext(ctx).Model(&models.Issue{}).Where("is_resolved = ?", false), "severity")
	if err != nil {
		h.fail(c, err)
		return
	}
	integrations, err := h.grouped(h.scoped(ctx, &models.Integration{}, business), "status")
	if err != nil {
		h.fail(c, err)
		return
	}

	latest, err := h.runs.Latest(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	runs := make([]models.SyncRun, 0, len(latest))
	for _, run := range latest {
		if business == "" || run.BusinessCode == business {
			runs = append(runs, run)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"counts":               counts,
		"products_not_ready":   notReady,
		"merchant_disapproved": disapproved,
		"open_issues":          issues,
		"integrations":         integrations,
		"latest_runs":          runs,
	}})
}

func (h *DashboardHandler) scoped(ctx context.Context, model interface{}, business string) *gorm.DB {
	q := h.db.WithContext(ctx).Model(model)
	if business != "" {
		q = q.Where("business_code = ?", business)
	}
	return q
}

func (h *DashboardHandler) count(ctx context.Context, model interface{}, business string) (int64, error) {
	var n int64
	err := h.scoped(ctx, model, business).Count(&n).Error
	return n, err
}

func (h *DashboardHandler) grouped(q *gorm.DB, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := q.Select(column + " AS group_key, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Total
	}
	return out, nil
}

func (h *DashboardHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
}
