// Package sales provides the SalesOrder and Shipment documents. Shipping an
// order posts ISSUE movements into the stock ledger.
package sales

import (
	"time"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// Status is the sales order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

// SalesOrder records goods sold to a customer from one store.
type SalesOrder struct {
	entity.Document

	CustomerID id.ID  `db:"customer_id" json:"customerId"`
	StoreID    id.ID  `db:"store_id" json:"storeId"`
	Status     Status `db:"status" json:"status"`
	Note       string `db:"note" json:"note,omitempty"`

	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one sold product. QuantityShipped tracks fulfillment progress and
// is advanced only when a shipment line lands in the ledger.
type Line struct {
	LineID          id.ID          `db:"line_id" json:"lineId"`
	LineNo          int            `db:"line_no" json:"lineNo"`
	ProductID       id.ID          `db:"product_id" json:"productId"`
	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	QuantityShipped types.Quantity `db:"quantity_shipped" json:"quantityShipped"`
	UnitPrice       types.Money    `db:"unit_price" json:"unitPrice"`
}

// NewSalesOrder creates a pending sales order.
func NewSalesOrder(number, createdBy string, customerID, storeID id.ID) *SalesOrder {
	return &SalesOrder{
		Document:   entity.NewDocument(number, createdBy),
		CustomerID: customerID,
		StoreID:    storeID,
		Status:     StatusPending,
		Lines:      make([]Line, 0),
	}
}

// AddLine appends a sold product and recalculates the total.
func (o *SalesOrder) AddLine(productID id.ID, quantity types.Quantity, unitPrice types.Money) {
	o.Lines = append(o.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(o.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	o.recalculateTotal()
}

func (o *SalesOrder) recalculateTotal() {
	total := types.Zero()
	for _, line := range o.Lines {
		total = total.Add(line.UnitPrice.Mul(line.Quantity))
	}
	o.TotalAmount = total
}

// Validate checks document invariants.
func (o *SalesOrder) Validate() error {
	if id.IsNil(o.CustomerID) {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}
	if id.IsNil(o.StoreID) {
		return apperror.NewValidation("store is required").
			WithDetail("field", "storeId")
	}
	if !o.Status.Valid() {
		return apperror.NewValidation("unknown sales order status").
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
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("line unit price must be non-negative").
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

// Shipment records one physical fulfillment of a sales order. An order may
// be fulfilled by several partial shipments; each shipment posts its own
// ledger entries under its own reference.
type Shipment struct {
	entity.Document

	OrderID id.ID  `db:"order_id" json:"orderId"`
	StoreID id.ID  `db:"store_id" json:"storeId"`
	Note    string `db:"note" json:"note,omitempty"`

	// ShippedAt is stamped once every line of this shipment has landed in
	// the ledger; nil while any line remains unposted.
	ShippedAt *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`

	Lines []ShipmentLine `db:"-" json:"lines"`
}

// ShipmentLine is one shipped product.
type ShipmentLine struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// NewShipment creates a shipment for an order.
func NewShipment(number, createdBy string, orderID, storeID id.ID) *Shipment {
	return &Shipment{
		Document: entity.NewDocument(number, createdBy),
		OrderID:  orderID,
		StoreID:  storeID,
		Lines:    make([]ShipmentLine, 0),
	}
}

// AddLine appends a shipped product.
func (sh *Shipment) AddLine(productID id.ID, quantity types.Quantity) {
	sh.Lines = append(sh.Lines, ShipmentLine{
		LineID:    id.New(),
		LineNo:    len(sh.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
	})
}

// Validate checks shipment invariants.
func (sh *Shipment) Validate() error {
	if id.IsNil(sh.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	if id.IsNil(sh.StoreID) {
		return apperror.NewValidation("store is required").
			WithDetail("field", "storeId")
	}

	seen := make(map[id.ID]int, len(sh.Lines))
	for _, line := range sh.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("line product is required").
				WithDetail("line_no", line.LineNo)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive").
				WithDetail("line_no", line.LineNo).
				WithDetail("quantity", line.Quantity.String())
		}
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
