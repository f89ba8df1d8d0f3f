package handler

import (
	"net/http"

	"almoheat/internal/model"
	"almoheat/internal/service"
	"almoheat/pkg/pagination"
	"almoheat/pkg/response"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contactService service.ContactService
}

func NewContactHandler(contactService service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

func (h *ContactHandler) RegisterRoutes(router *gin.RouterGroup) {
	contacts := router.Group("/contacts")
	{
		contacts.GET("", h.GetContacts)
		contacts.GET("/:id", h.GetContact)
		contacts.POST("", h.CreateContact)
		contacts.PUT("/:id", h.UpdateContact)
		contacts.DELETE("/:id", h.DeleteContact)
	}

	// customers under their older name
	clients := router.Group("/clients")
	{
		clients.GET("", h.GetClients)
		clients.GET("/:id", h.GetContact)
		clients.POST("", h.CreateClient)
		clients.PUT("/:id", h.UpdateContact)
		clients.DELETE("/:id", h.DeleteContact)
	}
}

// GetContacts lists customers and suppliers
// @Summary      Get contacts
// @Tags         contacts
// @Produce      json
// @Param        type    query     string  false  "customer or supplier"
// @Param        search  query     string  false  "Search by name, phone or email"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page{items=[]model.Contact}}
// @Router       /api/contacts [get]
func (h *ContactHandler) GetContacts(c *gin.Context) {
	h.list(c, c.Query("type"))
}

// GetClients lists customers only
// @Summary      Get clients
// @Tags         contacts
// @Produce      json
// @Param        search  query     string  false  "Search by name, phone or email"
// @Success      200     {object}  response.Response{data=response.Page{items=[]model.Contact}}
// @Router       /api/clients [get]
func (h *ContactHandler) GetClients(c *gin.Context) {
	h.list(c, model.ContactTypeCustomer)
}

func (h *ContactHandler) list(c *gin.Context, contactType string) {
	p := pagination.Parse(c)
	contacts, total, err := h.contactService.GetContacts(c.Request.Context(), service.ContactQuery{
		ContactType: contactType,
		Search:      c.Query("search"),
		Page:        p.Page,
		Limit:       p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, contacts, total, p.Page, p.Limit))
}

// GetContact returns one contact with its running balance
// @Summary      Get contact
// @Tags         contacts
// @Produce      json
// @Param        id   path      string  true  "Contact ID"
// @Success      200  {object}  response.Response{data=model.Contact}
// @Failure      404  {object}  response.Response
// @Router       /api/contacts/{id} [get]
// @Router       /api/clients/{id} [get]
func (h *ContactHandler) GetContact(c *gin.Context) {
	contact, err := h.contactService.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contact))
}

// CreateContact creates a customer or supplier
// @Summary      Create contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateContactRequest  true  "Contact"
// @Success      201      {object}  response.Response{data=model.Contact}
// @Failure      400      {object}  response.Response
// @Router       /api/contacts [post]
func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req service.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	h.create(c, req)
}

// CreateClient creates a customer
// @Summary      Create client
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateContactRequest  true  "Client"
// @Success      201      {object}  response.Response{data=model.Contact}
// @Router       /api/clients [post]
func (h *ContactHandler) CreateClient(c *gin.Context) {
	var req service.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	req.ContactType = model.ContactTypeCustomer
	h.create(c, req)
}

func (h *ContactHandler) create(c *gin.Context, req service.CreateContactRequest) {
	contact, err := h.contactService.CreateContact(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, contact))
}

// UpdateContact changes the given fields; the balance is not editable
// @Summary      Update contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Contact ID"
// @Param        payload  body      service.UpdateContactRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Contact}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/contacts/{id} [put]
// @Router       /api/clients/{id} [put]
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	var req service.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	contact, err := h.contactService.UpdateContact(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contact))
}

// DeleteContact soft deletes a contact
// @Summary      Delete contact
// @Tags         contacts
// @Produce      json
// @Param        id   path      string  true  "Contact ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/contacts/{id} [delete]
// @Router       /api/clients/{id} [delete]
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	if err := h.contactService.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Contact deleted successfully"}))
}
