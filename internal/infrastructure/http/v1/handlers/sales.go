package handlers

import (
	"github.com/gin-gonic/gin"

	"optipos/internal/domain/documents/sales"
	"optipos/internal/infrastructure/http/v1/dto"
	"optipos/internal/infrastructure/storage/postgres"
)

// SalesHandler exposes sales order and shipment operations.
type SalesHandler struct {
	*BaseHandler
	svc   *sales.Service
	audit *postgres.AuditService
}

// NewSalesHandler creates the sales handler.
func NewSalesHandler(svc *sales.Service, audit *postgres.AuditService) *SalesHandler {
	return &SalesHandler{
		BaseHandler: NewBaseHandler(),
		svc:         svc,
		audit:       audit,
	}
}

// Register wires the sales routes.
func (h *SalesHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sales-orders", h.Create)
	rg.GET("/sales-orders", h.List)
	rg.GET("/sales-orders/:id", h.Get)
	rg.POST("/sales-orders/:id/confirm", h.Confirm)
	rg.POST("/sales-orders/:id/ship", h.Ship)
	rg.POST("/sales-orders/:id/cancel", h.Cancel)
	rg.GET("/sales-orders/:id/shipments", h.ListShipments)
	rg.GET("/shipments/:id", h.GetShipment)
}

// Create creates a sales order.
// POST /sales-orders
func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CreateSalesOrderRequest
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
		_ = h.audit.LogAction(c.Request.Context(), "sales_order", order.ID,
			postgres.AuditActionCreate, dto.FromSalesOrder(order))
	}

	h.Created(c, order.ID.String())
}

// List returns sales orders matching the query.
// GET /sales-orders
func (h *SalesHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	filter := sales.OrderFilter{Limit: page.Limit, Offset: page.Offset}

	if v := c.Query("status"); v != "" {
		status := sales.Status(v)
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
	if v := c.Query("customerId"); v != "" {
		customerID, err := dto.ParseID("customerId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.CustomerID = &customerID
	}

	orders, err := h.svc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:  dto.FromSalesOrders(orders),
		Count:  len(orders),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get returns one sales order with lines.
// GET /sales-orders/:id
func (h *SalesHandler) Get(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSalesOrder(order))
}

// Confirm moves a pending order to confirmed.
// POST /sales-orders/:id/confirm
func (h *SalesHandler) Confirm(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.svc.Confirm(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "order confirmed")
}

// Ship records a shipment and posts ISSUE movements for its lines.
// POST /sales-orders/:id/ship
func (h *SalesHandler) Ship(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var req dto.ShipRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	shipment, err := req.ToShipment(h.ActorID(c), order)
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.svc.Ship(c.Request.Context(), shipment)
	if err != nil {
		h.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "shipment", shipment.ID,
			postgres.AuditActionShip, report)
	}

	h.OK(c, report)
}

// Cancel cancels an unshipped order.
// POST /sales-orders/:id/cancel
func (h *SalesHandler) Cancel(c *gin.Context) {
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
		_ = h.audit.LogAction(c.Request.Context(), "sales_order", orderID,
			postgres.AuditActionCancel, nil)
	}

	h.Success(c, "order cancelled")
}

// ListShipments returns all shipments of an order.
// GET /sales-orders/:id/shipments
func (h *SalesHandler) ListShipments(c *gin.Context) {
	orderID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	shipments, err := h.svc.ListShipments(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items: dto.FromShipments(shipments),
		Count: len(shipments),
	})
}

// GetShipment returns one shipment with lines.
// GET /shipments/:id
func (h *SalesHandler) GetShipment(c *gin.Context) {
	shipmentID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	shipment, err := h.svc.GetShipment(c.Request.Context(), shipmentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromShipment(shipment))
}
