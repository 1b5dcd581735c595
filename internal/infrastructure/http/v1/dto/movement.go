package dto

import (
	"time"

	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/domain/ledger"
)

// PostMovementRequest posts one stock movement. Quantities travel as decimal
// strings to avoid float precision loss in transit.
type PostMovementRequest struct {
	ProductID     string  `json:"productId" binding:"required"`
	StoreID       string  `json:"storeId" binding:"required"`
	Quantity      string  `json:"quantity" binding:"required"`
	MovementType  string  `json:"movementType" binding:"required"`
	UnitCost      *string `json:"unitCost"`
	ReferenceType string  `json:"referenceType"`
	ReferenceID   *string `json:"referenceId"`
	Note          string  `json:"note"`
}

// ToMovementRequest converts the DTO into a domain request.
func (r PostMovementRequest) ToMovementRequest() (ledger.MovementRequest, error) {
	var req ledger.MovementRequest

	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return req, err
	}
	storeID, err := ParseID("storeId", r.StoreID)
	if err != nil {
		return req, err
	}
	quantity, err := ParseQuantity("quantity", r.Quantity)
	if err != nil {
		return req, err
	}

	req = ledger.MovementRequest{
		ProductID:     productID,
		StoreID:       storeID,
		Quantity:      quantity,
		MovementType:  entity.MovementType(r.MovementType),
		ReferenceType: r.ReferenceType,
		Note:          r.Note,
	}

	if r.UnitCost != nil {
		unitCost, err := ParseQuantity("unitCost", *r.UnitCost)
		if err != nil {
			return req, err
		}
		req.UnitCost = &unitCost
	}

	if r.ReferenceID != nil {
		refID, err := ParseID("referenceId", *r.ReferenceID)
		if err != nil {
			return req, err
		}
		req.ReferenceID = &refID
	}

	return req, nil
}

// StocktakeRequest records a physical count for one pair.
type StocktakeRequest struct {
	ProductID       string `json:"productId" binding:"required"`
	StoreID         string `json:"storeId" binding:"required"`
	CountedQuantity string `json:"countedQuantity" binding:"required"`
	StocktakeID     string `json:"stocktakeId" binding:"required"`
	Note            string `json:"note"`
}

// ToCountRequest converts the DTO into a domain request.
func (r StocktakeRequest) ToCountRequest() (ledger.CountRequest, error) {
	var req ledger.CountRequest

	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return req, err
	}
	storeID, err := ParseID("storeId", r.StoreID)
	if err != nil {
		return req, err
	}
	stocktakeID, err := ParseID("stocktakeId", r.StocktakeID)
	if err != nil {
		return req, err
	}
	counted, err := ParseQuantity("countedQuantity", r.CountedQuantity)
	if err != nil {
		return req, err
	}

	return ledger.CountRequest{
		ProductID:       productID,
		StoreID:         storeID,
		CountedQuantity: counted,
		StocktakeID:     stocktakeID,
		Note:            r.Note,
	}, nil
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	StoreID       string    `json:"storeId"`
	Quantity      string    `json:"quantity"`
	UnitCost      *string   `json:"unitCost,omitempty"`
	MovementType  string    `json:"movementType"`
	ReferenceType *string   `json:"referenceType,omitempty"`
	ReferenceID   *string   `json:"referenceId,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	BalanceAfter  string    `json:"balanceAfter"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FromTransaction converts a ledger entry into its response shape.
func FromTransaction(txn *entity.StockTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           txn.ID.String(),
		ProductID:    txn.ProductID.String(),
		StoreID:      txn.StoreID.String(),
		Quantity:     txn.Quantity.String(),
		MovementType: string(txn.MovementType),
		CreatedBy:    txn.CreatedBy,
		BalanceAfter: txn.BalanceAfter.String(),
		Note:         txn.Note,
		CreatedAt:    txn.CreatedAt,
	}

	if txn.UnitCost != nil {
		unitCost := txn.UnitCost.String()
		resp.UnitCost = &unitCost
	}
	if txn.ReferenceType != nil {
		resp.ReferenceType = txn.ReferenceType
	}
	if txn.ReferenceID != nil {
		refID := txn.ReferenceID.String()
		resp.ReferenceID = &refID
	}

	return resp
}

// FromTransactions converts a slice of ledger entries.
func FromTransactions(txns []*entity.StockTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, FromTransaction(txn))
	}
	return out
}

// TransactionFilterRequest narrows ledger history queries.
type TransactionFilterRequest struct {
	PaginationRequest

	ProductID     string `form:"productId"`
	StoreID       string `form:"storeId"`
	MovementType  string `form:"movementType"`
	ReferenceType string `form:"referenceType"`
	ReferenceID   string `form:"referenceId"`
}

// ToFilter converts the DTO into a domain filter.
func (r TransactionFilterRequest) ToFilter() (ledger.TransactionFilter, error) {
	r.Defaults()
	filter := ledger.TransactionFilter{
		Limit:  r.Limit,
		Offset: r.Offset,
	}

	if r.ProductID != "" {
		productID, err := ParseID("productId", r.ProductID)
		if err != nil {
			return filter, err
		}
		filter.ProductID = &productID
	}
	if r.StoreID != "" {
		storeID, err := ParseID("storeId", r.StoreID)
		if err != nil {
			return filter, err
		}
		filter.StoreID = &storeID
	}
	if r.MovementType != "" {
		mt := entity.MovementType(r.MovementType)
		filter.MovementType = &mt
	}
	if r.ReferenceType != "" {
		filter.ReferenceType = &r.ReferenceType
	}
	if r.ReferenceID != "" {
		refID, err := ParseID("referenceId", r.ReferenceID)
		if err != nil {
			return filter, err
		}
		filter.ReferenceID = &refID
	}

	return filter, nil
}

// optionalID parses an optional UUID form value.
func optionalID(field, value string) (*id.ID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := ParseID(field, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
