package handler

import (
	"net/http"
	"strconv"

	"almoheat/internal/ledger"
	"almoheat/internal/service"
	"almoheat/pkg/response"

	"github.com/gin-gonic/gin"
)

// DraftHandler exposes invoices under construction. Drafts live in the
// draft store, not the database, until they are submitted.
type DraftHandler struct {
	draftService service.DraftService
}

func NewDraftHandler(draftService service.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

func (h *DraftHandler) RegisterRoutes(router *gin.RouterGroup) {
	drafts := router.Group("/drafts")
	{
		drafts.POST("", h.CreateDraft)
		drafts.GET("/:id", h.GetDraft)
		drafts.POST("/:id/items", h.AddItem)
		drafts.DELETE("/:id/items/:index", h.RemoveItem)
		drafts.PUT("/:id/contact", h.SetContact)
		drafts.PUT("/:id/discount", h.SetDiscount)
		drafts.POST("/:id/submit", h.Submit)
		drafts.DELETE("/:id", h.Cancel)
	}
}

// CreateDraft starts an empty sale or purchase draft
// @Summary      Create draft
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateDraftRequest  false  "Invoice type (default sale)"
// @Success      201      {object}  response.Response{data=service.DraftView}
// @Failure      400      {object}  response.Response
// @Router       /api/drafts [post]
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	var req service.CreateDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	draft, err := h.draftService.CreateDraft(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, draft))
}

// GetDraft returns a draft with its state and totals
// @Summary      Get draft
// @Tags         drafts
// @Produce      json
// @Param        id   path      string  true  "Draft ID"
// @Success      200  {object}  response.Response{data=service.DraftView}
// @Failure      404  {object}  response.Response
// @Router       /api/drafts/{id} [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	draft, err := h.draftService.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, draft))
}

// AddItem adds a line; sale quantities above the stock left are capped
// @Summary      Add draft item
// @Description  The response carries a warning when the quantity was capped
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Draft ID"
// @Param        payload  body      service.AddDraftItemRequest  true  "Line"
// @Success      200      {object}  response.Response{data=service.DraftView}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "INSUFFICIENT_STOCK when nothing is left"
// @Router       /api/drafts/{id}/items [post]
func (h *DraftHandler) AddItem(c *gin.Context) {
	var req service.AddDraftItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	draft, err := h.draftService.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, draft))
}

// RemoveItem drops the line at index
// @Summary      Remove draft item
// @Tags         drafts
// @Produce      json
// @Param        id     path      string  true  "Draft ID"
// @Param        index  path      int     true  "Zero based line index"
// @Success      200    {object}  response.Response{data=service.DraftView}
// @Failure      400    {object}  response.Response
// @Router       /api/drafts/{id}/items/{index} [delete]
func (h *DraftHandler) RemoveItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, ledger.ErrItemIndex)
		return
	}

	draft, err := h.draftService.RemoveItem(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, draft))
}

// SetContact selects an existing contact, names a new one or clears it
// @Summary      Set draft contact
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Draft ID"
// @Param        payload  body      service.DraftContactRequest  true  "Contact"
// @Success      200      {object}  response.Response{data=service.DraftView}
// @Failure      400      {object}  response.Response
// @Router       /api/drafts/{id}/contact [put]
func (h *DraftHandler) SetContact(c *gin.Context) {
	var req service.DraftContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	draft, err := h.draftService.SetContact(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, draft))
}

// SetDiscount sets the discount and notes
// @Summary      Set draft discount
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Draft ID"
// @Param        payload  body      service.DraftDiscountRequest  true  "Discount"
// @Success      200      {object}  response.Response{data=service.DraftView}
// @Failure      400      {object}  response.Response
// @Router       /api/drafts/{id}/discount [put]
func (h *DraftHandler) SetDiscount(c *gin.Context) {
	var req service.DraftDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	draft, err := h.draftService.SetDiscount(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, draft))
}

// Submit commits a ready draft as an invoice
// @Summary      Submit draft
// @Description  Stock is re-checked against locked rows; on failure the draft stays editable
// @Tags         drafts
// @Produce      json
// @Param        id   path      string  true  "Draft ID"
// @Success      201  {object}  response.Response{data=model.Invoice}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/drafts/{id}/submit [post]
func (h *DraftHandler) Submit(c *gin.Context) {
	invoice, err := h.draftService.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// Cancel abandons a draft
// @Summary      Cancel draft
// @Tags         drafts
// @Produce      json
// @Param        id   path      string  true  "Draft ID"
// @Success      200  {object}  response.Response{data=service.DraftView}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/drafts/{id} [delete]
func (h *DraftHandler) Cancel(c *gin.Context) {
	draft, err := h.draftService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, draft))
}
