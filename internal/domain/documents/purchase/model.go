// Package purchase provides the PurchaseOrder document. Receiving an order
// posts RECEIPT movements into the stock ledger.
package purchase

import (
	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusOrdered  Status = "ordered"
	StatusReceived Status = "received"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOrdered, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// PurchaseOrder records goods ordered from a supplier for one store.
type PurchaseOrder struct {
	entity.Document

	SupplierID id.ID  `db:"supplier_id" json:"supplierId"`
	StoreID    id.ID  `db:"store_id" json:"storeId"`
	Status     Status `db:"status" json:"status"`
	Note       string `db:"note" json:"note,omitempty"`

	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered product.
type Line struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
}

// NewPurchaseOrder creates a pending purchase order.
func NewPurchaseOrder(number, createdBy string, supplierID, storeID id.ID) *PurchaseOrder {
	return &PurchaseOrder{
		Document:   entity.NewDocument(number, createdBy),
		SupplierID: supplierID,
		StoreID:    storeID,
		Status:     StatusPending,
		Lines:      make([]Line, 0),
	}
}

// AddLine appends an ordered product and recalculates the total.
func (o *PurchaseOrder) AddLine(productID id.ID, quantity types.Quantity, unitCost types.Money) {
	o.Lines = append(o.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(o.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitCost:  unitCost,
	})
	o.recalculateTotal()
}

func (o *PurchaseOrder) recalculateTotal() {
	total := types.Zero()
	for _, line := range o.Lines {
		total = total.Add(line.UnitCost.Mul(line.Quantity))
	}
	o.TotalAmount = total
}

// Validate checks document invariants.
func (o *PurchaseOrder) Validate() error {
	if id.IsNil(o.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(o.StoreID) {
		return apperror.NewValidation("store is required").
			WithDetail("field", "storeId")
	}
	if !o.Status.Valid() {
		return apperror.NewValidation("unknown purchase order status").
			WithDetail("status", string(o.Status))
	}

	seen := make(map[id.ID]int, len(o.Lines))
	for _, line := range o.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("line product is required").
				WithDetail("line_no", line.LineNo)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive").
				WithDetail("line_no", line.LineNo).
				WithDetail("quantity", line.Quantity.String())
		}
		if line.UnitCost.IsNegative() {
			return apperror.NewValidation("line unit cost must be non-negative").
				WithDetail("line_no", line.LineNo)
		}
		// one ledger reference per (document, product): a repeated product
		// would collide with its own earlier line when posting
		if first, dup := seen[line.ProductID]; dup {
			return apperror.NewValidation("product appears on more than one line").
				WithDetail("product_id", line.ProductID).
				WithDetail("line_no", line.LineNo).
				WithDetail("first_line_no", first)
		}
		seen[line.ProductID] = line.LineNo
	}

	return nil
}
