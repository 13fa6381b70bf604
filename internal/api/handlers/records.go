package handlers

import (
	"net/http"
	"strings"

	"opshub/internal/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RecordHandler serves read-only listings of one synced table.
type RecordHandler[T any] struct {
	db     *gorm.DB
	logger *logger.Logger
	name   string
	order  string
	search []string
}

// NewRecordHandler lists T ordered by order. The search query matches any of
// the search columns, case-insensitively.
func NewRecordHandler[T any](db *gorm.DB, logger *logger.Logger, name, order string, search ...string) *RecordHandler[T] {
	return &RecordHandler[T]{db: db, logger: logger, name: name, order: order, search: search}
}

func (h *RecordHandler[T]) List(c *gin.Context) {
	p := paginate(c)
	query := h.db.WithContext(c.Request.Context()).Model(new(T))

	if business := c.Query("business"); business != "" {
		query = query.Where("business_code = ?", business)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" && len(h.search) > 0 {
		clauses := make([]string, len(h.search))
		args := make([]interface{}, len(h.search))
		for i, col := range h.search {
			clauses[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = "%" + search + "%"
		}
		query = query.Where(strings.Join(clauses, " OR "), args...)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch " + h.name})
		return
	}

	records := make([]T, 0)
	if err := query.Order(h.order).Offset(p.Offset()).Limit(p.Limit).Find(&records).Error; err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch " + h.name})
		return
	}
	respondPage(c, records, p, total)
}

func (h *RecordHandler[T]) Get(c *gin.Context) {
	record := new(T)
	if err := h.db.WithContext(c.Request.Context()).First(record, "id = ?", c.Param("id")).Error; err != nil {
		respondLookup(c, err, h.name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}
