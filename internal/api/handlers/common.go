package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"opshub/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxLimit = 200

type pagination struct {
	Page  int
	Limit int
}

func (p pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func paginate(c *gin.Context) pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return pagination{Page: page, Limit: limit}
}

func respondPage(c *gin.Context, data interface{}, p pagination, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"pagination": gin.H{
			"page":  p.Page,
			"limit": p.Limit,
			"total": total,
		},
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, store.ErrNotFound)
}

// respondLookup writes 404 for a missing record and 500 for anything else.
func respondLookup(c *gin.Context, err error, what string) {
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch " + what})
}
