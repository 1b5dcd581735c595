package dto

import (
	"time"

	appctx "optipos/internal/core/context"
	"optipos/internal/domain/documents/purchase"
)

// CreatePurchaseOrderRequest creates a purchase order with lines.
type CreatePurchaseOrderRequest struct {
	Number     string                     `json:"number" binding:"required"`
	SupplierID string                     `json:"supplierId" binding:"required"`
	StoreID    string                     `json:"storeId" binding:"required"`
	Note       string                     `json:"note"`
	Lines      []PurchaseOrderLineRequest `json:"lines" binding:"required"`
}

// PurchaseOrderLineRequest is one ordered product.
type PurchaseOrderLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
	UnitCost  string `json:"unitCost" binding:"required"`
}

// ToOrder converts the DTO into a domain document. The actor from ctx
// becomes the document author.
func (r CreatePurchaseOrderRequest) ToOrder(createdBy string) (*purchase.PurchaseOrder, error) {
	supplierID, err := ParseID("supplierId", r.SupplierID)
	if err != nil {
		return nil, err
	}
	storeID, err := ParseID("storeId", r.StoreID)
	if err != nil {
		return nil, err
	}

	order := purchase.NewPurchaseOrder(r.Number, createdBy, supplierID, storeID)
	order.Note = r.Note

	for _, line := range r.Lines {
		productID, err := ParseID("lines.productId", line.ProductID)
		if err != nil {
			return nil, err
		}
		quantity, err := ParseQuantity("lines.quantity", line.Quantity)
		if err != nil {
			return nil, err
		}
		unitCost, err := ParseQuantity("lines.unitCost", line.UnitCost)
		if err != nil {
			return nil, err
		}
		order.AddLine(productID, quantity, unitCost)
	}

	return order, nil
}

// PurchaseOrderResponse is one purchase order with lines.
type PurchaseOrderResponse struct {
	ID          string                      `json:"id"`
	Number      string                      `json:"number"`
	SupplierID  string                      `json:"supplierId"`
	StoreID     string                      `json:"storeId"`
	Status      string                      `json:"status"`
	Note        string                      `json:"note,omitempty"`
	TotalAmount string                      `json:"totalAmount"`
	CreatedBy   string                      `json:"createdBy"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
	Lines       []PurchaseOrderLineResponse `json:"lines,omitempty"`
}

// PurchaseOrderLineResponse is one ordered product.
type PurchaseOrderLineResponse struct {
	LineID    string `json:"lineId"`
	LineNo    int    `json:"lineNo"`
	ProductID string `json:"productId"`
	Quantity  string `json:"quantity"`
	UnitCost  string `json:"unitCost"`
}

// FromPurchaseOrder converts a domain document into its response shape.
func FromPurchaseOrder(order *purchase.PurchaseOrder) PurchaseOrderResponse {
	resp := PurchaseOrderResponse{
		ID:          order.ID.String(),
		Number:      order.Number,
		SupplierID:  order.SupplierID.String(),
		StoreID:     order.StoreID.String(),
		Status:      string(order.Status),
		Note:        order.Note,
		TotalAmount: order.TotalAmount.String(),
		CreatedBy:   order.CreatedBy,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}

	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, PurchaseOrderLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.String(),
			UnitCost:  line.UnitCost.String(),
		})
	}

	return resp
}

// FromPurchaseOrders converts a slice of documents.
func FromPurchaseOrders(orders []*purchase.PurchaseOrder) []PurchaseOrderResponse {
	out := make([]PurchaseOrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, FromPurchaseOrder(order))
	}
	return out
}

// ActorID resolves the author for new documents.
func ActorID(actor *appctx.Actor) string {
	if actor == nil {
		return "system"
	}
	return actor.ID
}
