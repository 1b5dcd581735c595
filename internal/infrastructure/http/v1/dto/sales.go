package dto

import (
	"time"

	"optipos/internal/domain/documents/sales"
)

// CreateSalesOrderRequest creates a sales order with lines.
type CreateSalesOrderRequest struct {
	Number     string                  `json:"number" binding:"required"`
	CustomerID string                  `json:"customerId" binding:"required"`
	StoreID    string                  `json:"storeId" binding:"required"`
	Note       string                  `json:"note"`
	Lines      []SalesOrderLineRequest `json:"lines" binding:"required"`
}

// SalesOrderLineRequest is one sold product.
type SalesOrderLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
	UnitPrice string `json:"unitPrice" binding:"required"`
}

// ToOrder converts the DTO into a domain document.
func (r CreateSalesOrderRequest) ToOrder(createdBy string) (*sales.SalesOrder, error) {
	customerID, err := ParseID("customerId", r.CustomerID)
	if err != nil {
		return nil, err
	}
	storeID, err := ParseID("storeId", r.StoreID)
	if err != nil {
		return nil, err
	}

	order := sales.NewSalesOrder(r.Number, createdBy, customerID, storeID)
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
		unitPrice, err := ParseQuantity("lines.unitPrice", line.UnitPrice)
		if err != nil {
			return nil, err
		}
		order.AddLine(productID, quantity, unitPrice)
	}

	return order, nil
}

// SalesOrderResponse is one sales order with lines.
type SalesOrderResponse struct {
	ID          string                   `json:"id"`
	Number      string                   `json:"number"`
	CustomerID  string                   `json:"customerId"`
	StoreID     string                   `json:"storeId"`
	Status      string                   `json:"status"`
	Note        string                   `json:"note,omitempty"`
	TotalAmount string                   `json:"totalAmount"`
	CreatedBy   string                   `json:"createdBy"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
	Lines       []SalesOrderLineResponse `json:"lines,omitempty"`
}

// SalesOrderLineResponse is one sold product.
type SalesOrderLineResponse struct {
	LineID          string `json:"lineId"`
	LineNo          int    `json:"lineNo"`
	ProductID       string `json:"productId"`
	Quantity        string `json:"quantity"`
	QuantityShipped string `json:"quantityShipped"`
	UnitPrice       string `json:"unitPrice"`
}

// FromSalesOrder converts a domain document into its response shape.
func FromSalesOrder(order *sales.SalesOrder) SalesOrderResponse {
	resp := SalesOrderResponse{
		ID:          order.ID.String(),
		Number:      order.Number,
		CustomerID:  order.CustomerID.String(),
		StoreID:     order.StoreID.String(),
		Status:      string(order.Status),
		Note:        order.Note,
		TotalAmount: order.TotalAmount.String(),
		CreatedBy:   order.CreatedBy,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}

	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, SalesOrderLineResponse{
			LineID:          line.LineID.String(),
			LineNo:          line.LineNo,
			ProductID:       line.ProductID.String(),
			Quantity:        line.Quantity.String(),
			QuantityShipped: line.QuantityShipped.String(),
			UnitPrice:       line.UnitPrice.String(),
		})
	}

	return resp
}

// FromSalesOrders converts a slice of documents.
func FromSalesOrders(orders []*sales.SalesOrder) []SalesOrderResponse {
	out := make([]SalesOrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, FromSalesOrder(order))
	}
	return out
}

// ShipRequest records a shipment against an order.
type ShipRequest struct {
	Number string                `json:"number" binding:"required"`
	Note   string                `json:"note"`
	Lines  []ShipmentLineRequest `json:"lines" binding:"required"`
}

// ShipmentLineRequest is one shipped product.
type ShipmentLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
}

// ToShipment converts the DTO into a domain document attached to an order.
func (r ShipRequest) ToShipment(createdBy string, order *sales.SalesOrder) (*sales.Shipment, error) {
	shipment := sales.NewShipment(r.Number, createdBy, order.ID, order.StoreID)
	shipment.Note = r.Note

	for _, line := range r.Lines {
		productID, err := ParseID("lines.productId", line.ProductID)
		if err != nil {
			return nil, err
		}
		quantity, err := ParseQuantity("lines.quantity", line.Quantity)
		if err != nil {
			return nil, err
		}
		shipment.AddLine(productID, quantity)
	}

	return shipment, nil
}

// ShipmentResponse is one shipment with lines.
type ShipmentResponse struct {
	ID        string                 `json:"id"`
	Number    string                 `json:"number"`
	OrderID   string                 `json:"orderId"`
	StoreID   string                 `json:"storeId"`
	Note      string                 `json:"note,omitempty"`
	ShippedAt *time.Time             `json:"shippedAt,omitempty"`
	CreatedBy string                 `json:"createdBy"`
	CreatedAt time.Time              `json:"createdAt"`
	Lines     []ShipmentLineResponse `json:"lines,omitempty"`
}

// ShipmentLineResponse is one shipped product.
type ShipmentLineResponse struct {
	LineID    string `json:"lineId"`
	LineNo    int    `json:"lineNo"`
	ProductID string `json:"productId"`
	Quantity  string `json:"quantity"`
}

// FromShipment converts a domain document into its response shape.
func FromShipment(shipment *sales.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ID:        shipment.ID.String(),
		Number:    shipment.Number,
		OrderID:   shipment.OrderID.String(),
		StoreID:   shipment.StoreID.String(),
		Note:      shipment.Note,
		ShippedAt: shipment.ShippedAt,
		CreatedBy: shipment.CreatedBy,
		CreatedAt: shipment.CreatedAt,
	}

	for _, line := range shipment.Lines {
		resp.Lines = append(resp.Lines, ShipmentLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.String(),
		})
	}

	return resp
}

// FromShipments converts a slice of documents.
func FromShipments(shipments []*sales.Shipment) []ShipmentResponse {
	out := make([]ShipmentResponse, 0, len(shipments))
	for _, shipment := range shipments {
		out = append(out, FromShipment(shipment))
	}
	return out
}
