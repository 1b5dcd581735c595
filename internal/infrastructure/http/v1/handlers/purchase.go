package handlers

import (
	"github.com/gin-gonic/gin"

	"optipos/internal/domain/documents/purchase"
	"optipos/internal/infrastructure/http/v1/dto"
	"optipos/internal/infrastructure/storage/postgres"
)

// PurchaseHandler exposes purchase order operations.
type PurchaseHandler struct {
	*BaseHandler
	svc   *purchase.Service
	audit *postgres.AuditService
}

// NewPurchaseHandler creates the purchase handler.
func NewPurchaseHandler(svc *purchase.Service, audit *postgres.AuditService) *PurchaseHandler {
	return &PurchaseHandler{
		BaseHandler: NewBaseHandler(),
		svc:         svc,
		audit:       audit,
	}
}

// Register wires the purchase routes.
func (h *PurchaseHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/purchase-orders", h.Create)
	rg.GET("/purchase-orders", h.List)
	rg.GET("/purchase-orders/:id", h.Get)
	rg.POST("/purchase-orders/:id/order", h.MarkOrdered)
	rg.POST("/purchase-orders/:id/receive", h.Receive)
	rg.POST("/purchase-orders/:id/cancel", h.Cancel)
}

// Create creates a purchase order.
// POST /purchase-orders
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := req.ToOrder(h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.svc.Create(c.Request.Context(), order); err != nil {
		h.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "purchase_order", order.ID,
			postgres.AuditActionCreate, dto.FromPurchaseOrder(order))
	}

	h.Created(c, order.ID.String())
}

// List returns purchase orders matching the query.
// GET /purchase-orders
func (h *PurchaseHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	filter := purchase.Filter{Limit: page.Limit, Offset: page.Offset}

	if v := c.Query("status"); v != "" {
		status := purchase.Status(v)
		filter.Status = &status
	}
	if v := c.Query("storeId"); v != "" {
		storeID, err := dto.ParseID("storeId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.StoreID = &storeID
	}
	if v := c.Query("supplierId"); v != "" {
		supplierID, err := dto.ParseID("supplierId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.SupplierID = &supplierID
	}

	orders, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:  dto.FromPurchaseOrders(orders),
		Count:  len(orders),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get returns one purchase order with lines.
// GET /purchase-orders/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.svc.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchaseOrder(order))
}

// MarkOrdered moves a pending order to ordered.
// POST /purchase-orders/:id/order
func (h *PurchaseHandler) MarkOrdered(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.svc.MarkOrdered(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "order marked as ordered")
}

// Receive posts RECEIPT movements for the order lines.
// POST /purchase-orders/:id/receive
func (h *PurchaseHandler) Receive(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.svc.Receive(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "purchase_order", orderID,
			postgres.AuditActionReceive, report)
	}

	h.OK(c, report)
}

// Cancel cancels an unreceived order.
// POST /purchase-orders/:id/cancel
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "purchase_order", orderID,
			postgres.AuditActionCancel, nil)
	}

	h.Success(c, "order cancelled")
}
