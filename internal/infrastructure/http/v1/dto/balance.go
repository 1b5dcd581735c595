package dto

import (
	"time"

	"optipos/internal/core/entity"
	"optipos/internal/domain/ledger"
)

// BalanceResponse is one materialized balance row.
type BalanceResponse struct {
	ProductID      string    `json:"productId"`
	StoreID        string    `json:"storeId"`
	Quantity       string    `json:"quantity"`
	StockAlert     string    `json:"stockAlert"`
	DiscountMethod string    `json:"discountMethod"`
	DiscountRate   string    `json:"discountRate"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FromBalance converts a balance row into its response shape.
func FromBalance(b *entity.InventoryBalance) BalanceResponse {
	return BalanceResponse{
		ProductID:      b.ProductID.String(),
		StoreID:        b.StoreID.String(),
		Quantity:       b.Quantity.String(),
		StockAlert:     b.StockAlert.String(),
		DiscountMethod: string(b.DiscountMethod),
		DiscountRate:   b.DiscountRate.String(),
		IsActive:       b.IsActive,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// FromBalances converts a slice of balance rows.
func FromBalances(balances []*entity.InventoryBalance) []BalanceResponse {
	out := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, FromBalance(b))
	}
	return out
}

// UpdateBalanceSettingsRequest changes the non-quantity balance fields.
type UpdateBalanceSettingsRequest struct {
	StockAlert     string `json:"stockAlert" binding:"required"`
	DiscountMethod string `json:"discountMethod" binding:"required"`
	DiscountRate   string `json:"discountRate" binding:"required"`
	IsActive       *bool  `json:"isActive" binding:"required"`
}

// ToSettings converts the DTO into domain settings.
func (r UpdateBalanceSettingsRequest) ToSettings() (entity.BalanceSettings, error) {
	var settings entity.BalanceSettings

	stockAlert, err := ParseQuantity("stockAlert", r.StockAlert)
	if err != nil {
		return settings, err
	}
	discountRate, err := ParseQuantity("discountRate", r.DiscountRate)
	if err != nil {
		return settings, err
	}

	return entity.BalanceSettings{
		StockAlert:     stockAlert,
		DiscountMethod: entity.DiscountMethod(r.DiscountMethod),
		DiscountRate:   discountRate,
		IsActive:       *r.IsActive,
	}, nil
}

// BalanceFilterRequest narrows balance listings.
type BalanceFilterRequest struct {
	PaginationRequest

	ProductID  string `form:"productId"`
	StoreID    string `form:"storeId"`
	ActiveOnly bool   `form:"activeOnly"`
}

// ToFilter converts the DTO into a domain filter.
func (r BalanceFilterRequest) ToFilter() (ledger.BalanceFilter, error) {
	r.Defaults()
	filter := ledger.BalanceFilter{
		ActiveOnly: r.ActiveOnly,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}

	productID, err := optionalID("productId", r.ProductID)
	if err != nil {
		return filter, err
	}
	filter.ProductID = productID

	storeID, err := optionalID("storeId", r.StoreID)
	if err != nil {
		return filter, err
	}
	filter.StoreID = storeID

	return filter, nil
}
