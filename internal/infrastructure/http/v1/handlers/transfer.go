package handlers

import (
	"github.com/gin-gonic/gin"

	"optipos/internal/domain/documents/transfer"
	"optipos/internal/infrastructure/http/v1/dto"
	"optipos/internal/infrastructure/storage/postgres"
)

// TransferHandler exposes inter-store transfer operations.
type TransferHandler struct {
	*BaseHandler
	svc   *transfer.Service
	audit *postgres.AuditService
}

// NewTransferHandler creates the transfer handler.
func NewTransferHandler(svc *transfer.Service, audit *postgres.AuditService) *TransferHandler {
	return &TransferHandler{
		BaseHandler: NewBaseHandler(),
		svc:         svc,
		audit:       audit,
	}
}

// Register wires the transfer routes.
func (h *TransferHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/transfers", h.Execute)
	rg.GET("/transfers", h.List)
	rg.GET("/transfers/:id", h.Get)
}

// Execute creates a transfer document and posts both movement legs
// for every line in one transaction.
// POST /transfers
func (h *TransferHandler) Execute(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tr, err := req.ToTransfer(h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.svc.Execute(c.Request.Context(), tr); err != nil {
		h.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "transfer", tr.ID,
			postgres.AuditActionTransfer, dto.FromTransfer(tr))
	}

	h.Created(c, tr.ID.String())
}

// List returns transfers matching the query.
// GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	filter := transfer.Filter{Limit: page.Limit, Offset: page.Offset}

	if v := c.Query("fromStoreId"); v != "" {
		storeID, err := dto.ParseID("fromStoreId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.FromStoreID = &storeID
	}
	if v := c.Query("toStoreId"); v != "" {
		storeID, err := dto.ParseID("toStoreId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ToStoreID = &storeID
	}

	transfers, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:  dto.FromTransfers(transfers),
		Count:  len(transfers),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get returns one transfer with lines.
// GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	tr, err := h.svc.GetByID(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(tr))
}
