package sales

import (
	"context"
	"time"

	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// OrderFilter narrows sales order listings.
type OrderFilter struct {
	CustomerID *id.ID
	StoreID    *id.ID
	Status     *Status
	Limit      int
	Offset     int
}

// OrderRepository is the persistence port for sales orders.
type OrderRepository interface {
	Create(ctx context.Context, order *SalesOrder) error
	GetByID(ctx context.Context, orderID id.ID) (*SalesOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]*SalesOrder, error)
	SetStatus(ctx context.Context, orderID id.ID, status Status) error

	// IncrementShippedQuantity atomically adds delta to the shipped counter
	// of the order line for productID.
	IncrementShippedQuantity(ctx context.Context, orderID, productID id.ID, delta types.Quantity) error
}

// ShipmentRepository is the persistence port for shipments.
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *Shipment) error
	GetByID(ctx context.Context, shipmentID id.ID) (*Shipment, error)
	ListByOrder(ctx context.Context, orderID id.ID) ([]*Shipment, error)

	// MarkShipped stamps the moment every line of the shipment reached the
	// ledger.
	MarkShipped(ctx context.Context, shipmentID id.ID, shippedAt time.Time) error
}
