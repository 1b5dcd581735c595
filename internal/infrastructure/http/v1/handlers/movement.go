package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"optipos/internal/domain/ledger"
	"optipos/internal/infrastructure/http/v1/dto"
	"optipos/internal/infrastructure/storage/postgres"
)

// MovementHandler exposes the stock ledger: posting movements, recording
// stocktakes and reading ledger history.
type MovementHandler struct {
	*BaseHandler
	engine *ledger.Service
	audit  *postgres.AuditService
}

// NewMovementHandler creates the movement handler.
func NewMovementHandler(engine *ledger.Service, audit *postgres.AuditService) *MovementHandler {
	return &MovementHandler{
		BaseHandler: NewBaseHandler(),
		engine:      engine,
		audit:       audit,
	}
}

// Register wires the ledger routes. Ledger entries are immutable: update
// and delete verbs answer 405 so clients learn the contract instead of
// getting a routing 404.
func (h *MovementHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/movements", h.Post)
	rg.GET("/movements", h.List)
	rg.GET("/movements/:id", h.Get)

	immutable := h.MethodNotAllowed("ledger entries are append-only and cannot be modified")
	rg.PUT("/movements/:id", immutable)
	rg.PATCH("/movements/:id", immutable)
	rg.DELETE("/movements/:id", immutable)

	rg.POST("/stocktakes", h.RecordCount)
}

// Post posts one stock movement.
// POST /movements
func (h *MovementHandler) Post(c *gin.Context) {
	var req dto.PostMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movementReq, err := req.ToMovementRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	txn, err := h.engine.PostMovement(c.Request.Context(), movementReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "stock_transaction", txn.ID,
			postgres.AuditActionPost, dto.FromTransaction(txn))
	}

	c.JSON(http.StatusCreated, dto.FromTransaction(txn))
}

// RecordCount records a physical stocktake result.
// POST /stocktakes
func (h *MovementHandler) RecordCount(c *gin.Context) {
	var req dto.StocktakeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	countReq, err := req.ToCountRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	txn, err := h.engine.RecordCount(c.Request.Context(), countReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	// counted quantity matched the ledger, nothing was posted
	if txn == nil {
		h.Success(c, "count matches ledger, no correction needed")
		return
	}

	if h.audit != nil {
		_ = h.audit.LogAction(c.Request.Context(), "stock_transaction", txn.ID,
			postgres.AuditActionCount, dto.FromTransaction(txn))
	}

	c.JSON(http.StatusCreated, dto.FromTransaction(txn))
}

// List returns ledger history matching the query.
// GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	var req dto.TransactionFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	txns, err := h.engine.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:  dto.FromTransactions(txns),
		Count:  len(txns),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get returns one ledger entry.
// GET /movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
	txnID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	txn, err := h.engine.GetTransaction(c.Request.Context(), txnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransaction(txn))
}
