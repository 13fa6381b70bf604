package reports

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"opshub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var defaultMarginThreshold = decimal.NewFromFloat(0.30)

func definitions() []Definition {
	return []Definition{
		{Name: "products", Description: "Synced products with price, stock and feed readiness", build: productsReport},
		{Name: "low-margin", Description: "Products whose margin is below the threshold (default 30%)", build: lowMarginReport},
		{Name: "merchant-disapprovals", Description: "Merchant Center offers that are disapproved somewhere", build: disapprovalsReport},
		{Name: "sync-runs", Description: "Recent sync runs with their counts and errors", build: syncRunsReport},
		{Name: "open-issues", Description: "Unresolved n8n workflow issues, worst first", build: openIssuesReport},
		{Name: "overdue-invoices", Description: "Authorised invoices past their due date with money owing", build: overdueInvoicesReport},
	}
}

func scoped(ctx context.Context, db *gorm.DB, p Params) *gorm.DB {
	q := db.WithContext(ctx)
	if p.Business != "" {
		q = q.Where("business_code = ?", p.Business)
	}
	return q
}

func limited(q *gorm.DB, p Params) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	return q
}

func productsReport(ctx context.Context, db *gorm.DB, p Params) (*Table, error) {
	var products []models.Product
	if err := limited(scoped(ctx, db, p), p).Order("business_code, title").Find(&products).Error; err != nil {
		return nil, err
	}
	t := &Table{
		Title:  "Products",
		Header: []string{"Business", "Source", "SKU", "Title", "Brand", "Price", "Cost", "Currency", "Stock", "Availability", "Feed Ready", "Feed Problems"},
	}
	for _, pr := range products {
		t.Rows = append(t.Rows, []interface{}{
			pr.BusinessCode, pr.Source, pr.SKU, pr.Title, pr.Brand, pr.Price, pr.CostPrice, pr.Currency,
			pr.InventoryQuantity, string(pr.Availability), pr.FeedReady, joinJSON(pr.FeedProblems),
		})
	}
	return t, nil
}

func lowMarginReport(ctx context.Context, db *gorm.DB, p Params) (*Table, error) {
	threshold := p.Threshold
	if threshold.IsZero() {
		threshold = defaultMarginThreshold
	}
	var products []models.Product
	err := scoped(ctx, db, p).
		Where("cost_price IS NOT NULL AND price > 0").
		Order("business_code, title").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	t := &Table{
		Title:  "Low Margin Products",
		Header: []string{"Business", "SKU", "Title", "Price", "Cost", "Margin %"},
	}
	hundred := decimal.NewFromInt(100)
	for i := range products {
		pr := &products[i]
		margin, ok := pr.Margin()
		if !ok || !margin.LessThan(threshold) {
			continue
		}
		t.Rows = append(t.Rows, []interface{}{
			pr.BusinessCode, pr.SKU, pr.Title, pr.Price, pr.CostPrice, margin.Mul(hundred).Round(2),
		})
		if p.Limit > 0 && len(t.Rows) == p.Limit {
			break
		}
	}
	return t, nil
}

func disapprovalsReport(ctx context.Context, db *gorm.DB, p Params) (*Table, error) {
	var statuses []models.MerchantProductStatus
	err := limited(scoped(ctx, db, p), p).
		Where("is_disapproved = ?", true).
		Order("issue_count DESC, offer_id").
		Find(&statuses).Error
	if err != nil {
		return nil, err
	}
	t := &Table{
		Title:  "Merchant Disapprovals",
		Header: []string{"Business", "Offer ID", "Title", "Disapproved In", "Issue Count", "Issues", "Last Checked"},
	}
	for _, s := range statuses {
		t.Rows = append(t.Rows, []interface{}{
			s.BusinessCode, s.OfferID, s.Title, s.Disapproved, s.IssueCount, issueSummary(s.Issues), s.LastCheckedAt,
		})
	}
	return t, nil
}

func syncRunsReport(ctx context.Context, db *gorm.DB, p Params) (*Table, error) {
	q := scoped(ctx, db, p)
	if !p.Since.IsZero() {
		q = q.Where("started_at >= ?", p.Since)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 500
	}
	var runs []models.SyncRun
	if err := q.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	t := &Table{
		Title:  "Sync Runs",
		Header: []string{"Started", "Job", "Business", "Trigger", "Status", "Seconds", "Fetched", "Upserted", "Failed", "Error"},
	}
	for _, r := range runs {
		var seconds interface{}
		if r.FinishedAt != nil {
			seconds = decimal.NewFromFloat(r.Duration().Seconds()).Round(2)
		}
		t.Rows = append(t.Rows, []interface{}{
			r.StartedAt, r.JobKind, r.BusinessCode, string(r.Trigger), string(r.Status), seconds,
			r.Fetched, r.Upserted, r.Failed, r.Error,
		})
	}
	return t, nil
}

func openIssuesReport(ctx context.Context, db *gorm.DB, p Params) (*Table, error) {
	var issues []models.Issue
	err := db.WithContext(ctx).
		Where("is_resolved = ?", false).
		Order("last_seen_at DESC").
		Find(&issues).Error
	if err != nil {
		return nil, err
	}
	t := &Table{
		Title:  "Open Issues",
		Header: []string{"Severity", "Workflow", "Code", "Explanation", "Suggested Fix", "Occurrences", "First Seen", "Last Seen"},
	}
	sortBySeverity(issues)
	for _, is := range issues {
		fix := ""
		if is.SuggestedFix != nil {
			fix = *is.SuggestedFix
		}
		t.Rows = append(t.Rows, []interface{}{
			string(is.Severity), is.WorkflowName, is.Code, is.Explanation, fix, is.Occurrences, is.FirstSeenAt, is.LastSeenAt,
		})
		if p.Limit > 0 && len(t.Rows) == p.Limit {
			break
		}
	}
	return t, nil
}

func overdueInvoicesReport(ctx context.Context, db *gorm.DB, p Params) (*Table, error) {
	var invoices []models.Invoice
	err := scoped(ctx, db, p).
		Where("status = ? AND due_date IS NOT NULL", "AUTHORISED").
		Order("due_date").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	t := &Table{
		Title:  "Overdue Invoices",
		Header: []string{"Business", "Number", "Type", "Contact", "Due Date", "Days Overdue", "Total", "Amount Due", "Currency"},
	}
	for i := range invoices {
		inv := &invoices[i]
		if !inv.Overdue(p.Now) {
			continue
		}
		days := int(p.Now.Sub(*inv.DueDate).Hours() / 24)
		t.Rows = append(t.Rows, []interface{}{
			inv.BusinessCode, inv.Number, inv.Type, inv.ContactName, *inv.DueDate, days, inv.Total, inv.AmountDue, inv.Currency,
		})
		if p.Limit > 0 && len(t.Rows) == p.Limit {
			break
		}
	}
	return t, nil
}

func sortBySeverity(issues []models.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})
}

// joinJSON flattens a JSON string array into "a; b".
func joinJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return string(raw)
	}
	return strings.Join(items, "; ")
}

// issueSummary pulls the description out of each stored merchant issue.
func issueSummary(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var items []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return string(raw)
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Description != "" {
			parts = append(parts, it.Description)
		} else {
			parts = append(parts, it.Code)
		}
	}
	return strings.Join(parts, "; ")
}
