package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"opshub/internal/reports"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ReportHandler struct {
	exporter *reports.Exporter
}

func NewReportHandler(exporter *reports.Exporter) *ReportHandler {
	return &ReportHandler{exporter: exporter}
}

func (h *ReportHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.exporter.List()})
}

// Download streams a report as CSV (default) or XLSX.
// Query: format, business, threshold, since (RFC3339), limit.
func (h *ReportHandler) Download(c *gin.Context) {
	name := c.Param("name")
	format := c.DefaultQuery("format", reports.FormatCSV)
	contentType, err := reports.ContentType(format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := reports.Params{Business: c.Query("business"), Now: time.Now().UTC()}
	if raw := c.Query("threshold"); raw != "" {
		if params.Threshold, err = decimal.NewFromString(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a decimal"})
			return
		}
	}
	if raw := c.Query("since"); raw != "" {
		if params.Since, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		params.Limit, _ = strconv.Atoi(raw)
	}

	var buf bytes.Buffer
	if _, err := h.exporter.Export(c.Request.Context(), name, format, params, &buf); err != nil {
		if errors.Is(err, reports.ErrUnknownReport) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	filename := reports.Filename(name, format, params.Now)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
