package handlers

import (
	"net/http"

	"opshub/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BusinessHandler struct {
	db *gorm.DB
}

func NewBusinessHandler(db *gorm.DB) *BusinessHandler {
	return &BusinessHandler{db: db}
}

func (h *BusinessHandler) List(c *gin.Context) {
	var businesses []models.Business
	if err := h.db.WithContext(c.Request.Context()).Order("code").Find(&businesses).Error; err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch businesses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": businesses})
}
