package handler

import (
	"net/http"

	"almoheat/internal/ledger"
	"almoheat/internal/service"
	"almoheat/pkg/pagination"
	"almoheat/pkg/response"

	"github.com/gin-gonic/gin"
)

type CashHandler struct {
	cashService service.CashService
}

func NewCashHandler(cashService service.CashService) *CashHandler {
	return &CashHandler{cashService: cashService}
}

func (h *CashHandler) RegisterRoutes(router *gin.RouterGroup) {
	cash := router.Group("/cash")
	{
		cash.GET("", h.GetTransactions)
		cash.GET("/balance", h.GetBalance)
		cash.GET("/:id", h.GetTransaction)
		cash.POST("", h.CreateTransaction)
		cash.PUT("/:id", h.UpdateTransaction)
		cash.DELETE("/:id", h.DeleteTransaction)
	}

	expenses := router.Group("/expenses")
	{
		expenses.GET("", h.GetExpenses)
		expenses.POST("", h.CreateExpense)
	}
}

func (h *CashHandler) list(c *gin.Context, transactionType string) {
	p := pagination.Parse(c)
	txs, total, err := h.cashService.GetTransactions(c.Request.Context(), service.CashQuery{
		TransactionType: transactionType,
		ContactID:       c.Query("contact_id"),
		StartDate:       c.Query("start_date"),
		EndDate:         c.Query("end_date"),
		Page:            p.Page,
		Limit:           p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, txs, total, p.Page, p.Limit))
}

// GetTransactions lists cash receipts and payments
// @Summary      Get cash transactions
// @Tags         cash
// @Produce      json
// @Param        transaction_type  query     string  false  "income, expense, receipt or payment"
// @Param        contact_id        query     string  false  "Contact ID"
// @Param        start_date        query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date          query     string  false  "RFC3339 or YYYY-MM-DD, inclusive"
// @Param        page              query     int     false  "Page number (default 1)"
// @Param        limit             query     int     false  "Number of items per page (default 20)"
// @Success      200               {object}  response.Response{data=response.Page{items=[]model.CashTransaction}}
// @Failure      400               {object}  response.Response
// @Router       /api/cash [get]
func (h *CashHandler) GetTransactions(c *gin.Context) {
	h.list(c, c.Query("transaction_type"))
}

// GetExpenses lists expense rows only
// @Summary      Get expenses
// @Tags         cash
// @Produce      json
// @Success      200  {object}  response.Response{data=response.Page{items=[]model.CashTransaction}}
// @Router       /api/expenses [get]
func (h *CashHandler) GetExpenses(c *gin.Context) {
	h.list(c, string(ledger.CashExpense))
}

// GetTransaction returns one cash transaction
// @Summary      Get cash transaction
// @Tags         cash
// @Produce      json
// @Param        id   path      string  true  "Transaction ID"
// @Success      200  {object}  response.Response{data=model.CashTransaction}
// @Failure      404  {object}  response.Response
// @Router       /api/cash/{id} [get]
func (h *CashHandler) GetTransaction(c *gin.Context) {
	tx, err := h.cashService.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

// GetBalance sums receipts and payments
// @Summary      Cash balance
// @Tags         cash
// @Produce      json
// @Param        start_date  query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        end_date    query     string  false  "RFC3339 or YYYY-MM-DD, inclusive"
// @Success      200         {object}  response.Response{data=ledger.CashSummary}
// @Failure      400         {object}  response.Response
// @Router       /api/cash/balance [get]
func (h *CashHandler) GetBalance(c *gin.Context) {
	summary, err := h.cashService.GetBalance(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// CreateTransaction records a receipt or payment
// @Summary      Create cash transaction
// @Description  A transaction linked to a contact settles that contact's balance
// @Tags         cash
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CashRequest  true  "Transaction"
// @Success      201      {object}  response.Response{data=model.CashTransaction}
// @Failure      400      {object}  response.Response
// @Router       /api/cash [post]
func (h *CashHandler) CreateTransaction(c *gin.Context) {
	var req service.CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	h.create(c, req)
}

// CreateExpense records a payment
// @Summary      Create expense
// @Tags         cash
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CashRequest  true  "Expense; transaction_type is ignored"
// @Success      201      {object}  response.Response{data=model.CashTransaction}
// @Failure      400      {object}  response.Response
// @Router       /api/expenses [post]
func (h *CashHandler) CreateExpense(c *gin.Context) {
	var req service.CashRequest
	// transaction_type is implied here, so it is set before validation
	req.TransactionType = string(ledger.CashExpense)
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	req.TransactionType = string(ledger.CashExpense)
	h.create(c, req)
}

func (h *CashHandler) create(c *gin.Context, req service.CashRequest) {
	tx, err := h.cashService.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// UpdateTransaction replaces a cash transaction
// @Summary      Update cash transaction
// @Tags         cash
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Transaction ID"
// @Param        payload  body      service.CashRequest  true  "Transaction"
// @Success      200      {object}  response.Response{data=model.CashTransaction}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/cash/{id} [put]
func (h *CashHandler) UpdateTransaction(c *gin.Context) {
	var req service.CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tx, err := h.cashService.UpdateTransaction(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

// DeleteTransaction deletes a cash transaction and undoes its balance effect
// @Summary      Delete cash transaction
// @Tags         cash
// @Produce      json
// @Param        id   path      string  true  "Transaction ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/cash/{id} [delete]
func (h *CashHandler) DeleteTransaction(c *gin.Context) {
	if err := h.cashService.DeleteTransaction(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Transaction deleted successfully"}))
}
