package handler

import (
	"net/http"

	"almoheat/internal/service"
	"almoheat/pkg/pagination"
	"almoheat/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/invoices")
	{
		invoices.GET("", h.GetInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("", h.CreateInvoice)
		invoices.POST("/preview", h.PreviewInvoice)
		invoices.PATCH("/:id/status", h.UpdateStatus)
		invoices.DELETE("/:id", h.DeleteInvoice)
	}
}

// GetInvoices lists invoices, newest first
// @Summary      Get invoices
// @Tags         invoices
// @Produce      json
// @Param        contact_id  query     string  false  "Contact ID"
// @Param        type        query     string  false  "sale or purchase"
// @Param        status      query     string  false  "pending, paid or cancelled"
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD, inclusive"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=response.Page{items=[]model.Invoice}}
// @Failure      400         {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) GetInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	invoices, total, err := h.invoiceService.GetInvoices(c.Request.Context(), service.InvoiceQuery{
		ContactID:   c.Query("contact_id"),
		InvoiceType: c.Query("type"),
		Status:      c.Query("status"),
		StartDate:   c.Query("start_date"),
		EndDate:     c.Query("end_date"),
		Page:        p.Page,
		Limit:       p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, total, p.Page, p.Limit))
}

// GetInvoice returns an invoice with its items
// @Summary      Get invoice
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=model.Invoice}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// CreateInvoice commits a sale or purchase
// @Summary      Create invoice
// @Description  Locks every product row, checks live stock, moves stock, adjusts the contact balance and writes the audit trail in one transaction
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Invoice"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "INSUFFICIENT_STOCK"
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// PreviewInvoice prices a request without committing it
// @Summary      Preview invoice
// @Description  Quantities above the stock on hand are capped and reported as warnings
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Invoice"
// @Success      200      {object}  response.Response{data=service.InvoicePreview}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/preview [post]
func (h *InvoiceHandler) PreviewInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	preview, err := h.invoiceService.PreviewInvoice(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// UpdateStatus moves an invoice to paid or cancelled
// @Summary      Update invoice status
// @Description  Cancelling restores stock and the contact balance
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Invoice ID"
// @Param        payload  body      service.UpdateInvoiceStatusRequest  true  "Status"
// @Success      200      {object}  response.Response{data=model.Invoice}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response  "INVALID_STATE or INSUFFICIENT_STOCK"
// @Router       /api/invoices/{id}/status [patch]
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	invoice, err := h.invoiceService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice deletes an invoice, reversing it unless already cancelled
// @Summary      Delete invoice
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Invoice deleted successfully"}))
}
