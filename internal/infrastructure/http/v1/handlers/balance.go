package handlers

import (
	"github.com/gin-gonic/gin"

	"optipos/internal/core/id"
	"optipos/internal/domain/ledger"
	"optipos/internal/infrastructure/http/v1/dto"
)

// BalanceHandler exposes materialized inventory balances.
type BalanceHandler struct {
	*BaseHandler
	engine *ledger.Service
}

// NewBalanceHandler creates the balance handler.
func NewBalanceHandler(engine *ledger.Service) *BalanceHandler {
	return &BalanceHandler{
		BaseHandler: NewBaseHandler(),
		engine:      engine,
	}
}

// Register wires the balance routes.
func (h *BalanceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/balances", h.List)
	rg.GET("/balances/low-stock", h.LowStock)
	rg.GET("/balances/:productId/:storeId", h.Get)
	rg.PUT("/balances/:productId/:storeId/settings", h.UpdateSettings)
}

// List returns balance rows matching the query.
// GET /balances
func (h *BalanceHandler) List(c *gin.Context) {
	var req dto.BalanceFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	balances, err := h.engine.ListBalances(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:  dto.FromBalances(balances),
		Count:  len(balances),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// LowStock returns active balances matching the low-stock rule.
// GET /balances/low-stock
func (h *BalanceHandler) LowStock(c *gin.Context) {
	var storeID *id.ID
	if v := c.Query("storeId"); v != "" {
		parsed, err := dto.ParseID("storeId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		storeID = &parsed
	}

	balances, err := h.engine.ListLowStock(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items: dto.FromBalances(balances),
		Count: len(balances),
	})
}

// Get returns one balance row.
// GET /balances/:productId/:storeId
func (h *BalanceHandler) Get(c *gin.Context) {
	productID, err := dto.ParseID("productId", c.Param("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	storeID, err := dto.ParseID("storeId", c.Param("storeId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	balance, err := h.engine.GetBalance(c.Request.Context(), productID, storeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalance(balance))
}

// UpdateSettings changes the non-quantity balance fields. Quantity itself
// can only move through posted movements.
// PUT /balances/:productId/:storeId/settings
func (h *BalanceHandler) UpdateSettings(c *gin.Context) {
	productID, err := dto.ParseID("productId", c.Param("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	storeID, err := dto.ParseID("storeId", c.Param("storeId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var req dto.UpdateBalanceSettingsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	settings, err := req.ToSettings()
	if err != nil {
		h.Error(c, err)
		return
	}

	balance, err := h.engine.UpdateBalanceSettings(c.Request.Context(), productID, storeID, settings)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalance(balance))
}
