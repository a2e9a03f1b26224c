package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gawangliliw/sellerhub/internal/analytics"
	"gawangliliw/sellerhub/internal/api/middleware"
	"gawangliliw/sellerhub/internal/export"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/tasks"
	"gawangliliw/sellerhub/internal/utils"
)

// ReportLookup reads back a queued export.
type ReportLookup func(taskID string) (*tasks.ReportState, error)

// RestDashboardHandler serves the staff sales dashboard.
type RestDashboardHandler struct {
	dashboard services.IDashboardService
	lookup    ReportLookup
}

func NewRestDashboardHandler(dashboard services.IDashboardService, lookup ReportLookup) *RestDashboardHandler {
	return &RestDashboardHandler{dashboard: dashboard, lookup: lookup}
}

func (h *RestDashboardHandler) target(c *gin.Context) (utils.SixID, analytics.Period, bool) {
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return utils.SixID{}, "", false
	}
	sellerID, err := targetSeller(middleware.SellerID(c), c.GetBool(middleware.ContextKeyIsStaff), c.Query("seller_id"))
	if err != nil {
		respondError(c, err)
		return utils.SixID{}, "", false
	}
	return sellerID, period, true
}

// Sales handles GET /v1/dashboard/sales?period=&seller_id=
func (h *RestDashboardHandler) Sales(c *gin.Context) {
	sellerID, period, ok := h.target(c)
	if !ok {
		return
	}
	summary, err := h.dashboard.SalesSummary(c.Request.Context(), sellerID, period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// Export handles GET /v1/dashboard/export?period=&seller_id= and streams
// the workbook as a download.
func (h *RestDashboardHandler) Export(c *gin.Context) {
	sellerID, period, ok := h.target(c)
	if !ok {
		return
	}
	data, filename, err := h.dashboard.ExportReport(c.Request.Context(), sellerID, period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType, data)
}

// ReportStatus handles GET /v1/dashboard/reports/:task_id
func (h *RestDashboardHandler) ReportStatus(c *gin.Context) {
	st, err := h.lookup(c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if st.SellerID != middleware.SellerID(c).String() && !c.GetBool(middleware.ContextKeyIsStaff) {
		respondError(c, services.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": st})
}
