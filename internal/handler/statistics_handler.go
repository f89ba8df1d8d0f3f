package handler

import (
	"net/http"

	"almoheat/internal/service"
	"almoheat/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/dashboard", h.GetDashboard)
		reports.GET("/inventory", h.GetInventory)
		reports.GET("/profit-loss", h.GetProfitLoss)
		reports.GET("/account-statement/:contact_id", h.GetAccountStatement)
	}
}

// GetDashboard returns counts, totals, low stock and recent activity
// @Summary      Dashboard
// @Tags         reports
// @Produce      json
// @Success      200  {object}  response.Response{data=model.DashboardResponse}
// @Router       /api/reports/dashboard [get]
func (h *ReportHandler) GetDashboard(c *gin.Context) {
	dashboard, err := h.reportService.GetDashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}

// GetInventory values stock at cost and at price
// @Summary      Inventory report
// @Tags         reports
// @Produce      json
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD, inclusive"
// @Success      200         {object}  response.Response{data=model.InventoryReport}
// @Failure      400         {object}  response.Response
// @Router       /api/reports/inventory [get]
func (h *ReportHandler) GetInventory(c *gin.Context) {
	report, err := h.reportService.GetInventoryReport(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// GetProfitLoss reports sales, purchases, income and expenses
// @Summary      Profit and loss
// @Tags         reports
// @Produce      json
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD, inclusive"
// @Success      200         {object}  response.Response{data=model.ProfitLossReport}
// @Failure      400         {object}  response.Response
// @Router       /api/reports/profit-loss [get]
func (h *ReportHandler) GetProfitLoss(c *gin.Context) {
	report, err := h.reportService.GetProfitLoss(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// GetAccountStatement lists a contact's invoices and cash
// @Summary      Account statement
// @Tags         reports
// @Produce      json
// @Param        contact_id  path      string  true   "Contact ID"
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD, inclusive"
// @Success      200         {object}  response.Response{data=model.AccountStatement}
// @Failure      400         {object}  response.Response
// @Failure      404         {object}  response.Response
// @Router       /api/reports/account-statement/{contact_id} [get]
func (h *ReportHandler) GetAccountStatement(c *gin.Context) {
	statement, err := h.reportService.GetAccountStatement(c.Request.Context(), c.Param("contact_id"), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, statement))
}
